package command

import (
	"strconv"
	"strings"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// ParsedCommand is the inverse of Build: a raw rsync argument vector decoded
// back into structured fields, so hand-edited custom_args or imported job
// configs can round-trip through a structured form.
type ParsedCommand struct {
	Options          domain.TransferOptions
	LinkDest         string
	SSHCommand       string
	Source           string
	Destination      string
	UnrecognizedArgs []string
}

var knownBoolFlags = map[string]func(*domain.TransferOptions){
	"-a":                func(o *domain.TransferOptions) { o.Core.Archive = true },
	"-z":                func(o *domain.TransferOptions) { o.Core.Compress = true },
	"--partial":         func(o *domain.TransferOptions) { o.Core.Partial = true },
	"--dry-run":         func(o *domain.TransferOptions) { o.Core.DryRun = true },
	"--delete":          func(o *domain.TransferOptions) { o.FileHandling.Delete = true },
	"--size-only":       func(o *domain.TransferOptions) { o.FileHandling.SizeOnly = true },
	"--checksum":        func(o *domain.TransferOptions) { o.FileHandling.Checksum = true },
	"--update":          func(o *domain.TransferOptions) { o.FileHandling.Update = true },
	"--whole-file":      func(o *domain.TransferOptions) { o.FileHandling.WholeFile = true },
	"--ignore-existing": func(o *domain.TransferOptions) { o.FileHandling.IgnoreExisting = true },
	"--one-file-system": func(o *domain.TransferOptions) { o.FileHandling.OneFileSystem = true },
	"--hard-links":      func(o *domain.TransferOptions) { o.Metadata.HardLinks = true },
	"--acls":            func(o *domain.TransferOptions) { o.Metadata.ACLs = true },
	"--xattrs":          func(o *domain.TransferOptions) { o.Metadata.XAttrs = true },
	"--numeric-ids":     func(o *domain.TransferOptions) { o.Metadata.NumericIDs = true },
	"-v":                func(o *domain.TransferOptions) { o.Output.Verbose = true },
	"--progress":        func(o *domain.TransferOptions) { o.Output.Progress = true },
	"-h":                func(o *domain.TransferOptions) { o.Output.HumanReadable = true },
	"--stats":           func(o *domain.TransferOptions) { o.Output.Stats = true },
	"--itemize-changes": func(o *domain.TransferOptions) { o.Output.ItemizeChanges = true },
}

// Parse decodes a raw rsync argument vector (as produced by Build, or
// hand-edited) back into a ParsedCommand. The last two positional (non-flag)
// tokens are treated as source and destination; anything unrecognized is
// preserved verbatim in UnrecognizedArgs and Options.Advanced.CustomArgs so
// round-tripping never silently drops data.
func Parse(args []string) ParsedCommand {
	var pc ParsedCommand
	pc.Options = domain.TransferOptions{}

	var positionals []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case knownBoolFlags[a] != nil:
			knownBoolFlags[a](&pc.Options)
		case strings.HasPrefix(a, "--exclude="):
			pc.Options.Advanced.ExcludePatterns = append(pc.Options.Advanced.ExcludePatterns, strings.TrimPrefix(a, "--exclude="))
		case strings.HasPrefix(a, "--include="):
			pc.Options.Advanced.IncludePatterns = append(pc.Options.Advanced.IncludePatterns, strings.TrimPrefix(a, "--include="))
		case strings.HasPrefix(a, "--bwlimit="):
			if n, err := strconv.Atoi(strings.TrimPrefix(a, "--bwlimit=")); err == nil {
				pc.Options.Advanced.BandwidthLimit = &n
			}
		case strings.HasPrefix(a, "--link-dest="):
			pc.LinkDest = strings.TrimPrefix(a, "--link-dest=")
		case a == "-e":
			if i+1 < len(args) {
				pc.SSHCommand = args[i+1]
				i++
			}
		default:
			positionals = append(positionals, a)
		}
	}

	if len(positionals) >= 2 {
		pc.Destination = positionals[len(positionals)-1]
		pc.Source = positionals[len(positionals)-2]
		pc.UnrecognizedArgs = positionals[:len(positionals)-2]
	} else {
		pc.UnrecognizedArgs = positionals
	}
	pc.Options.Advanced.CustomArgs = append([]string{}, pc.UnrecognizedArgs...)

	return pc
}
