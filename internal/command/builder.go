// Package command builds and explains the rsync argument vector for a job,
// and parses one back into TransferOptions. Building is a pure function:
// same inputs, same ordered argument vector, every time.
package command

import (
	"fmt"
	"strings"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// Build flattens a job's transfer configuration into an ordered rsync
// argument vector. Ordering is a contract: core flags, file-handling flags,
// metadata flags, output flags, exclude patterns (input order), include
// patterns (input order), bwlimit, link-dest, transport-shell, custom_args
// (input order), source, destination.
func Build(
	source, destination domain.Location,
	opts domain.TransferOptions,
	ssh *domain.SSHConfig,
	linkDest string,
	autoTrailingSlash bool,
) []string {
	var args []string

	// Core
	if opts.Core.Archive {
		args = append(args, "-a")
	}
	if opts.Core.Compress {
		args = append(args, "-z")
	}
	if opts.Core.Partial {
		args = append(args, "--partial")
	}
	if opts.Core.DryRun {
		args = append(args, "--dry-run")
	}

	// File handling
	if opts.FileHandling.Delete {
		args = append(args, "--delete")
	}
	if opts.FileHandling.SizeOnly {
		args = append(args, "--size-only")
	}
	if opts.FileHandling.Checksum {
		args = append(args, "--checksum")
	}
	if opts.FileHandling.Update {
		args = append(args, "--update")
	}
	if opts.FileHandling.WholeFile {
		args = append(args, "--whole-file")
	}
	if opts.FileHandling.IgnoreExisting {
		args = append(args, "--ignore-existing")
	}
	if opts.FileHandling.OneFileSystem {
		args = append(args, "--one-file-system")
	}

	// Metadata
	if opts.Metadata.HardLinks {
		args = append(args, "--hard-links")
	}
	if opts.Metadata.ACLs {
		args = append(args, "--acls")
	}
	if opts.Metadata.XAttrs {
		args = append(args, "--xattrs")
	}
	if opts.Metadata.NumericIDs {
		args = append(args, "--numeric-ids")
	}

	// Output
	if opts.Output.Verbose {
		args = append(args, "-v")
	}
	if opts.Output.Progress {
		args = append(args, "--progress")
	}
	if opts.Output.HumanReadable {
		args = append(args, "-h")
	}
	if opts.Output.Stats {
		args = append(args, "--stats")
	}
	if opts.Output.ItemizeChanges {
		args = append(args, "--itemize-changes")
	}

	// Patterns & advanced
	for _, pattern := range opts.Advanced.ExcludePatterns {
		args = append(args, "--exclude="+pattern)
	}
	for _, pattern := range opts.Advanced.IncludePatterns {
		args = append(args, "--include="+pattern)
	}
	if opts.Advanced.BandwidthLimit != nil {
		args = append(args, fmt.Sprintf("--bwlimit=%d", *opts.Advanced.BandwidthLimit))
	}
	if linkDest != "" {
		args = append(args, "--link-dest="+linkDest)
	}

	// Transport shell
	if ssh != nil {
		if ssh.CustomSSHCommand != "" {
			args = append(args, "-e "+ssh.CustomSSHCommand)
		} else {
			sshParts := []string{"ssh"}
			if ssh.Port != 0 && ssh.Port != 22 {
				sshParts = append(sshParts, fmt.Sprintf("-p %d", ssh.Port))
			}
			if ssh.Identity != "" {
				sshParts = append(sshParts, "-i "+ssh.Identity)
			}
			if !ssh.StrictHostKeyChecking {
				sshParts = append(sshParts, "-o StrictHostKeyChecking=no")
			}
			if len(sshParts) > 1 {
				args = append(args, "-e", strings.Join(sshParts, " "))
			}
		}
	}

	for _, custom := range opts.Advanced.CustomArgs {
		args = append(args, custom)
	}

	sourcePath := source.String()
	destPath := destination.String()
	if autoTrailingSlash {
		args = append(args, ensureTrailingSlash(sourcePath), ensureTrailingSlash(destPath))
	} else {
		args = append(args, sourcePath, destPath)
	}

	return args
}

func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// Join renders an argument vector as a single shell-like display string, the
// form recorded as Invocation.Output.CommandExecuted.
func Join(binary string, args []string) string {
	return strings.TrimSpace(binary + " " + strings.Join(args, " "))
}
