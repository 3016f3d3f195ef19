package core

import (
	"strings"

	"github.com/jmylchreest/classbell/internal/model"
)

// LookupByIndex finds an entry by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(entries []model.Entry, index int) *model.Entry {
	idx := index - 1
	if idx < 0 || idx >= len(entries) {
		return nil
	}
	return &entries[idx]
}

// RemoveByIndex returns entries without the 1-based index.
// ok is false if the index is out of bounds.
func RemoveByIndex(entries []model.Entry, index int) ([]model.Entry, bool) {
	idx := index - 1
	if idx < 0 || idx >= len(entries) {
		return entries, false
	}
	result := make([]model.Entry, 0, len(entries)-1)
	result = append(result, entries[:idx]...)
	return append(result, entries[idx+1:]...), true
}

// Search finds entries matching a search term in name or teacher.
// Case-insensitive substring match.
func Search(entries []model.Entry, term string) []model.Entry {
	if term == "" {
		return entries
	}

	var result []model.Entry
	for _, e := range entries {
		if containsFold(e.Name, term) || containsFold(e.Teacher, term) {
			result = append(result, e)
		}
	}

	return result
}

// UniqueTeachers returns a sorted list of unique teacher names.
func UniqueTeachers(entries []model.Entry) []string {
	seen := make(map[string]bool)
	var teachers []string

	for _, e := range entries {
		if e.Teacher != "" && !seen[e.Teacher] {
			seen[e.Teacher] = true
			teachers = append(teachers, e.Teacher)
		}
	}

	sortStrings(teachers)
	return teachers
}

// sortStrings sorts strings in place (insertion sort for small lists).
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && strings.ToLower(s[j]) < strings.ToLower(s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
