package command

import (
	"fmt"
	"strings"
)

// ArgCategory buckets an explained argument for display grouping.
type ArgCategory int

const (
	CategoryFlag ArgCategory = iota
	CategoryDeletion
	CategoryMetadata
	CategoryOutput
	CategoryPerformance
	CategoryPattern
	CategorySSH
	CategoryPath
	CategoryUnknown
)

// ArgumentExplanation is one entry in a CommandExplanation.
type ArgumentExplanation struct {
	Argument    string
	Description string
	Category    ArgCategory
}

// CommandExplanation is a human-readable breakdown of a built argument
// vector, used by a frontend's "what will this do" preview.
type CommandExplanation struct {
	Arguments []ArgumentExplanation
	Summary   string
}

var flagDescriptions = map[string]struct {
	desc string
	cat  ArgCategory
}{
	"-a":                 {"Archive mode: preserves permissions, timestamps, symlinks, owner, group, and recurses into directories.", CategoryFlag},
	"-z":                 {"Compress: compresses data during transfer to reduce bandwidth usage.", CategoryPerformance},
	"--partial":          {"Partial: keeps partially transferred files so interrupted transfers can resume.", CategoryFlag},
	"--dry-run":          {"Dry run: simulates the transfer without making any changes.", CategoryFlag},
	"--delete":           {"Delete: removes files from the destination that don't exist in the source.", CategoryDeletion},
	"--size-only":        {"Size only: compares files by size only, ignoring modification times.", CategoryFlag},
	"--checksum":         {"Checksum: uses checksums instead of size/mtime to decide whether to transfer a file.", CategoryFlag},
	"--update":           {"Update: skips files that are newer on the destination than the source.", CategoryFlag},
	"--whole-file":       {"Whole file: disables the delta-transfer algorithm and transfers whole files.", CategoryPerformance},
	"--ignore-existing":  {"Ignore existing: skips files that already exist on the destination.", CategoryFlag},
	"--one-file-system":  {"One file system: doesn't cross filesystem boundaries when recursing.", CategoryFlag},
	"--hard-links":       {"Hard links: preserves hard links between files.", CategoryMetadata},
	"--acls":             {"ACLs: preserves Access Control Lists.", CategoryMetadata},
	"--xattrs":           {"Extended attributes: preserves extended attributes.", CategoryMetadata},
	"--numeric-ids":      {"Numeric IDs: transfers numeric group/user IDs rather than mapping them by name.", CategoryMetadata},
	"-v":                 {"Verbose: increases the amount of information displayed during transfer.", CategoryOutput},
	"--progress":         {"Progress: shows transfer progress for each file during the sync.", CategoryOutput},
	"-h":                 {"Human-readable: outputs numbers in a human-readable format (e.g. 1.5M).", CategoryOutput},
	"--stats":            {"Stats: prints transfer statistics at the end.", CategoryOutput},
	"--itemize-changes":  {"Itemize changes: outputs a per-file change summary.", CategoryOutput},
}

// Explain renders a human-readable breakdown of a built argument vector.
func Explain(args []string) CommandExplanation {
	var out CommandExplanation
	var hasArchive, hasDelete, hasDryRun, hasCompress bool
	var excludeCount int
	var hasBwlimit, hasLinkDest, hasSSH bool

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "--exclude="):
			pattern := strings.TrimPrefix(a, "--exclude=")
			out.Arguments = append(out.Arguments, ArgumentExplanation{
				Argument:    a,
				Description: fmt.Sprintf("Exclude files matching the pattern %q from the transfer.", pattern),
				Category:    CategoryPattern,
			})
			excludeCount++
		case strings.HasPrefix(a, "--include="):
			pattern := strings.TrimPrefix(a, "--include=")
			out.Arguments = append(out.Arguments, ArgumentExplanation{
				Argument:    a,
				Description: fmt.Sprintf("Include files matching the pattern %q (overrides excludes).", pattern),
				Category:    CategoryPattern,
			})
		case strings.HasPrefix(a, "--bwlimit="):
			out.Arguments = append(out.Arguments, ArgumentExplanation{
				Argument:    a,
				Description: "Limits transfer bandwidth to avoid saturating the network.",
				Category:    CategoryPerformance,
			})
			hasBwlimit = true
		case strings.HasPrefix(a, "--link-dest="):
			out.Arguments = append(out.Arguments, ArgumentExplanation{
				Argument:    a,
				Description: "Uses a reference directory so unchanged files are hard-linked instead of copied.",
				Category:    CategoryPerformance,
			})
			hasLinkDest = true
		case a == "-e":
			desc := ""
			if i+1 < len(args) {
				desc = fmt.Sprintf("Connects using a custom remote shell command: %q.", args[i+1])
				i++
			}
			out.Arguments = append(out.Arguments, ArgumentExplanation{Argument: "-e", Description: desc, Category: CategorySSH})
			hasSSH = true
		default:
			if info, ok := flagDescriptions[a]; ok {
				out.Arguments = append(out.Arguments, ArgumentExplanation{Argument: a, Description: info.desc, Category: info.cat})
				switch a {
				case "-a":
					hasArchive = true
				case "--delete":
					hasDelete = true
				case "--dry-run":
					hasDryRun = true
				case "-z":
					hasCompress = true
				}
			} else if i >= len(args)-2 {
				// Last two non-flag tokens are source/destination paths.
				label := "Source"
				if i == len(args)-1 {
					label = "Destination"
				}
				out.Arguments = append(out.Arguments, ArgumentExplanation{
					Argument:    a,
					Description: fmt.Sprintf("%s: %s.", label, a),
					Category:    CategoryPath,
				})
			} else {
				out.Arguments = append(out.Arguments, ArgumentExplanation{
					Argument:    a,
					Description: "Custom argument, passed through unmodified.",
					Category:    CategoryUnknown,
				})
			}
		}
	}

	out.Summary = buildSummary(hasArchive, hasDelete, hasDryRun, hasCompress, excludeCount, hasBwlimit, hasLinkDest, hasSSH)
	return out
}

func buildSummary(archive, del, dryRun, compress bool, excludeCount int, bwlimit, linkDest, ssh bool) string {
	var parts []string
	if dryRun {
		parts = append(parts, "This is a DRY RUN — no actual changes will be made.")
	}
	switch {
	case archive && del:
		parts = append(parts, "Mirrors the source to the destination, preserving attributes and deleting extraneous files.")
	case archive:
		parts = append(parts, "Syncs files from source to destination, preserving permissions, timestamps, and other attributes.")
	default:
		parts = append(parts, "Transfers files from source to destination.")
	}
	if compress {
		parts = append(parts, "Data is compressed during transfer.")
	}
	if excludeCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pattern(s) are excluded.", excludeCount))
	}
	if bwlimit {
		parts = append(parts, "Bandwidth is limited.")
	}
	if linkDest {
		parts = append(parts, "Using hard-link deduplication from a reference snapshot.")
	}
	if ssh {
		parts = append(parts, "Connecting via custom SSH configuration.")
	}
	return strings.Join(parts, " ")
}
