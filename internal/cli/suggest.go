// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Typo correction for commands.
package cli

import (
	"strings"
)

// validCommands lists every command name and alias ParseArgs accepts.
var validCommands = []string{
	"tui",
	"chat",
	"register",
	"login",
	"logout",
	"whoami",
	"quota",
	"history",
	"status",
	"config",
	"version",
	"help",
	// Aliases
	"s",
	"repl",
	"signup",
	"signin",
	"signout",
}

// slashCommands lists the REPL commands.
var slashCommands = []string{
	"/help", "/new", "/clear", "/login", "/register", "/logout",
	"/whoami", "/quota", "/theme", "/history", "/quit", "/exit",
}

// SuggestCommand returns the closest command name, or "" when nothing is
// close enough.
func SuggestCommand(input string) string {
	return suggest(input, validCommands)
}

func suggest(input string, candidates []string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	// Short inputs allow one edit; longer ones catch transpositions.
	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range candidates {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-character insertions,
// deletions or substitutions that turn s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}
