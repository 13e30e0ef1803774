// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/rie/internal/errors"
)

// bashCompletionTemplate is the bash completion script for RIE.
//
// It provides command and flag completion for bash shells using the
// bash completion framework.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for RIE (Recursive Ingestion Engine)
# Installation:
#   source <(rie completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(rie completion bash)' >> ~/.bashrc

_rie_completion() {
    local cur prev commands
    commands="init run search status reset completion"

    # Current word being completed
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    # Global flags
    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config" -- ${cur}) )
        return 0
    fi

    # First argument: complete commands
    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    # Command-specific flag completion
    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        run)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--full --page-workers --debug --metrics-addr -q --no-color" -- ${cur}) )
            fi
            ;;
        search)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--top-k --json --timeout" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        completion)
            # Complete shell names for completion command
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _rie_completion rie
`

// zshCompletionTemplate is the zsh completion script for RIE.
//
// It provides command and flag completion for zsh shells using the
// zsh completion system.
const zshCompletionTemplate = `#compdef rie

# Zsh completion script for RIE (Recursive Ingestion Engine)
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      rie completion zsh > "${fpath[1]}/_rie"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_rie() {
    local -a commands
    commands=(
        'init:Create .rie/project.yaml configuration'
        'run:Ingest the configured sources'
        'search:Semantic search over ingested content'
        'status:Show project status'
        'reset:Delete local project output'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .rie/project.yaml]:config file:_files -g "*.yaml"' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                run)
                    _arguments \
                        '--full[Ignore checkpoint and process everything]' \
                        '--page-workers[Number of PDF page workers]:workers:' \
                        '--debug[Enable debug logging]' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '-q[Suppress progress output]' \
                        '--no-color[Disable colored output]'
                    ;;
                search)
                    _arguments \
                        '--top-k[Number of results]:count:' \
                        '--json[Output as JSON]' \
                        '--timeout[Query timeout]:duration:' \
                        '1:query text:'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                reset)
                    _arguments \
                        '--yes[Skip confirmation prompt]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_rie
`

// fishCompletionTemplate is the fish completion script for RIE.
//
// It provides command and flag completion for fish shells using the
// fish completion system.
const fishCompletionTemplate = `# Fish completion script for RIE (Recursive Ingestion Engine)
# Installation:
#   1. Load completions for current session:
#      rie completion fish | source
#   2. Install permanently:
#      rie completion fish > ~/.config/fish/completions/rie.fish

# Commands
complete -c rie -f -n "__fish_use_subcommand" -a "init" -d "Create .rie/project.yaml configuration"
complete -c rie -f -n "__fish_use_subcommand" -a "run" -d "Ingest the configured sources"
complete -c rie -f -n "__fish_use_subcommand" -a "search" -d "Semantic search over ingested content"
complete -c rie -f -n "__fish_use_subcommand" -a "status" -d "Show project status"
complete -c rie -f -n "__fish_use_subcommand" -a "reset" -d "Delete local project output (destructive!)"
complete -c rie -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c rie -l version -d "Show version and exit"
complete -c rie -l config -d "Path to .rie/project.yaml" -r

# run command flags
complete -c rie -n "__fish_seen_subcommand_from run" -l full -d "Ignore checkpoint and process everything"
complete -c rie -n "__fish_seen_subcommand_from run" -l page-workers -d "Number of PDF page workers" -r
complete -c rie -n "__fish_seen_subcommand_from run" -l debug -d "Enable debug logging"
complete -c rie -n "__fish_seen_subcommand_from run" -l metrics-addr -d "Prometheus metrics address" -r
complete -c rie -n "__fish_seen_subcommand_from run" -s q -d "Suppress progress output"
complete -c rie -n "__fish_seen_subcommand_from run" -l no-color -d "Disable colored output"

# search command flags
complete -c rie -n "__fish_seen_subcommand_from search" -l top-k -d "Number of results" -r
complete -c rie -n "__fish_seen_subcommand_from search" -l json -d "Output as JSON"
complete -c rie -n "__fish_seen_subcommand_from search" -l timeout -d "Query timeout" -r

# status command flags
complete -c rie -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

# reset command flags
complete -c rie -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

# completion command arguments
complete -c rie -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c rie -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c rie -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes the 'completion' CLI command, generating
// shell-specific completion scripts for bash, zsh, or fish shells.
//
// The completion command outputs a shell-specific script to stdout that
// can be sourced to enable tab completion for RIE commands and flags.
// Each shell has different completion syntax and installation
// requirements.
//
// Usage:
//
//	rie completion [bash|zsh|fish]
//
// Examples:
//
//	rie completion bash                     Output bash completion script
//	source <(rie completion bash)           Load bash completions in current shell
//	rie completion zsh > "${fpath[1]}/_rie" Install zsh completions permanently
//	rie completion fish | source            Load fish completions in current shell
func runCompletion(args []string, configPath string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie completion <shell>

Description:
  Generate shell completion scripts for bash, zsh, or fish.

  Shell completions allow you to use Tab to autocomplete commands,
  flags, and arguments. This improves discoverability and reduces typing.

Arguments:
  shell    Shell type: bash, zsh, or fish (required)

Examples:
  # Generate bash completion script
  rie completion bash

  # Load bash completions in current shell
  source <(rie completion bash)

  # Install bash completions permanently (Linux)
  rie completion bash > /etc/bash_completion.d/rie

  # Install zsh completions (macOS with Homebrew)
  rie completion zsh > $(brew --prefix)/share/zsh/site-functions/_rie

  # Install fish completions
  rie completion fish > ~/.config/fish/completions/rie.fish

Notes:
  After installing completions, restart your shell or source your rc file.
  For persistent installation, add the source command to ~/.bashrc or ~/.zshrc.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// Validate arguments
	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'rie completion bash', 'rie completion zsh', or 'rie completion fish'",
		), false)
	}

	shell := fs.Arg(0)

	// Generate completion script for the specified shell
	switch shell {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", shell),
			"Run 'rie completion bash', 'rie completion zsh', or 'rie completion fish'",
		), false)
	}
}
