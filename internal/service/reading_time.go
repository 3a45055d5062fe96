package service

import "strings"

// WordsPerMinute is the reading speed behind ReadingTime.
const WordsPerMinute = 200

// CountWords counts whitespace-separated tokens in every heading and body block.
func CountWords(content []ContentGroup) int {
	total := 0
	for _, group := range content {
		total += len(strings.Fields(group.Heading))
		for _, text := range group.BodyText {
			total += len(strings.Fields(text))
		}
	}
	return total
}

// ReadingTime estimates whole minutes to read content, rounding up.
// Empty content reads in 0 minutes.
func ReadingTime(content []ContentGroup) int {
	words := CountWords(content)
	return (words + WordsPerMinute - 1) / WordsPerMinute
}
