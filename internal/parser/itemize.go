package parser

import (
	"strings"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// ParseItemize decodes a single rsync --itemize-changes output line.
//
// The format is either:
//   - a message line beginning with '*' (e.g. "*deleting   path/to/file"), or
//   - an 11-char code (rsync <3.2) or 12-char code (rsync 3.2+) followed by a
//     space and the file path: "YXcstpoguax[n] path/to/file".
//
// Code length is auto-detected by which position holds the separating space.
func ParseItemize(line string) (domain.ItemizedChange, bool) {
	if line == "" {
		return domain.ItemizedChange{}, false
	}

	if strings.HasPrefix(line, "*") {
		rest := strings.TrimLeft(line[1:], " \t")
		idx := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' })
		if idx < 0 {
			return domain.ItemizedChange{}, false
		}
		path := strings.TrimLeft(rest[idx:], " \t")
		if path == "" {
			return domain.ItemizedChange{}, false
		}
		return domain.ItemizedChange{
			Transfer: domain.TransferMessage,
			File:     domain.FileRegular,
			Message:  rest[:idx],
			Path:     path,
		}, true
	}

	if len(line) < 13 {
		return domain.ItemizedChange{}, false
	}
	chars := []rune(line)

	var transferType domain.TransferType
	switch chars[0] {
	case '>':
		transferType = domain.TransferUpdated
	case '<':
		transferType = domain.TransferLocal
	case 'c':
		transferType = domain.TransferLocalChg
	case '.':
		transferType = domain.TransferNoChange
	default:
		return domain.ItemizedChange{}, false
	}

	var fileType domain.FileType
	switch chars[1] {
	case 'f':
		fileType = domain.FileRegular
	case 'd':
		fileType = domain.FileDirectory
	case 'L':
		fileType = domain.FileSymlink
	case 'D':
		fileType = domain.FileDevice
	case 'S':
		fileType = domain.FileSpecial
	default:
		return domain.ItemizedChange{}, false
	}

	var codeLen int
	switch {
	case len(chars) > 12 && chars[12] == ' ':
		codeLen = 12
	case len(chars) > 11 && chars[11] == ' ':
		codeLen = 11
	default:
		return domain.ItemizedChange{}, false
	}

	flagCount := codeLen - 2
	flagChars := chars[2:codeLen]

	allPlus := true
	for _, c := range flagChars {
		if c != '+' {
			allPlus = false
			break
		}
	}

	var differences []domain.DifferenceKind
	if allPlus {
		differences = []domain.DifferenceKind{domain.DiffNewlyCreated}
	} else {
		if flagChars[0] == 'c' {
			differences = append(differences, domain.DiffChecksum)
		}
		if flagChars[1] == 's' {
			differences = append(differences, domain.DiffSize)
		}
		if flagChars[2] == 't' {
			differences = append(differences, domain.DiffTimestamp)
		}
		if flagChars[3] == 'p' {
			differences = append(differences, domain.DiffPermissions)
		}
		if flagChars[4] == 'o' {
			differences = append(differences, domain.DiffOwner)
		}
		if flagChars[5] == 'g' {
			differences = append(differences, domain.DiffGroup)
		}
		// flag index 6 is unused/skipped in rsync's itemize format string.
		if flagChars[7] == 'a' {
			differences = append(differences, domain.DiffACL)
		}
		if flagCount > 8 && flagChars[8] == 'x' {
			differences = append(differences, domain.DiffXAttrs)
		}
		// flag index 9 (rsync 3.2+ extra field) carries no mapped attribute.
	}

	path := string(chars[codeLen+1:])

	return domain.ItemizedChange{
		Transfer:    transferType,
		File:        fileType,
		Differences: differences,
		Path:        path,
	}, true
}
