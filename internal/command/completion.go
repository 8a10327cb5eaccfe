// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/meta"
)

const bashCompletionScript = `# bash completion for mrdp
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_mrdp()
{
  local cur prev cmd sub
  COMPREPLY=()
  _get_comp_words_by_ref -n : cur prev

  if [[ ${COMP_CWORD} -eq 1 ]]; then
    COMPREPLY=( $(compgen -W "generate load schema deploy destroy stacks etl serve completion --help --version" -- "$cur") )
    return 0
  fi

  cmd=${COMP_WORDS[1]}
  sub=${COMP_WORDS[2]}
  local common="--attrs -a --color -c --filter -f --local -l --output -o --padding --sort -s --titles -t --tldr"
  local aws="--profile --region --max-attempts --s3-path-style"
  local plan="--project --env -e --compute --only --pick --template-dir --artifact-bucket --poll-interval --timeout --outputs-ttl $aws"
  local rds="--rds-host --rds-port --rds-db --rds-user --rds-password --rds-secret-arn --rds-sslmode"
  local redshift="--redshift-host --redshift-port --redshift-db --redshift-user --redshift-password --redshift-secret-arn --redshift-sslmode"
  local etl="--staging-bucket --raw-bucket --iam-role --gzip --ledger-dir $redshift $aws"
  local dirs=0

  case "$prev" in
    --output|-o)
      COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
      return 0
      ;;
    --compute)
      COMPREPLY=( $(compgen -W "ecs eks" -- "$cur") )
      return 0
      ;;
    --target)
      COMPREPLY=( $(compgen -W "oltp warehouse" -- "$cur") )
      return 0
      ;;
    --type)
      COMPREPLY=( $(compgen -W "full dimensions procedures maintenance" -- "$cur") )
      return 0
      ;;
    --dir|-d|--output-dir|--template-dir|--ledger-dir)
      COMPREPLY=( $(compgen -o dirnames -- "$cur") )
      return 0
      ;;
  esac

  case "$cmd" in
    generate)
      local opts="$common --schema --robots --facilities --procedures --telemetry-samples --maintenance-logs --start --end --output-dir -d --seed"
      ;;
    load)
      local opts="$common --schema --dir -d --telemetry --truncate --upload --raw-bucket --gzip $rds $aws"
      ;;
    schema)
      if [[ ${COMP_CWORD} -eq 2 ]]; then
        COMPREPLY=( $(compgen -W "apply seed-calendar" -- "$cur") )
        return 0
      fi
      case "$sub" in
        apply) local opts="$common --target $rds $redshift $aws" ;;
        seed-calendar) local opts="$common --from --to $redshift $aws" ;;
        *) local opts="$common" ;;
      esac
      ;;
    deploy)
      local opts="$common --schema $plan --dry-run"
      dirs=1
      ;;
    destroy)
      local opts="$common --schema $plan --yes"
      dirs=1
      ;;
    stacks)
      if [[ ${COMP_CWORD} -eq 2 && "$cur" != -* ]]; then
        COMPREPLY=( $(compgen -W "diff" -- "$cur") $(compgen -o dirnames -- "$cur") )
        return 0
      fi
      if [[ "$sub" == "diff" ]]; then
        local opts="$plan --ignore --color -c --tldr"
      else
        local opts="$common --schema $plan"
      fi
      dirs=1
      ;;
    etl)
      if [[ ${COMP_CWORD} -eq 2 ]]; then
        COMPREPLY=( $(compgen -W "run telemetry schedule history" -- "$cur") )
        return 0
      fi
      case "$sub" in
        run) local opts="$common --schema --type --start --end --since-last $rds $etl" ;;
        telemetry) local opts="$common --schema --prefix --batch-date --max-files --workers $etl" ;;
        schedule) local opts="--cron --type --since-last --prefix --max-files --workers $rds $etl --tldr" ;;
        history) local opts="$common --schema --ledger-dir --limit" ;;
        *) local opts="$common" ;;
      esac
      ;;
    serve)
      if [[ ${COMP_CWORD} -eq 2 ]]; then
        COMPREPLY=( $(compgen -W "api ingest" -- "$cur") )
        return 0
      fi
      local opts="--addr --log-queries --tldr $rds $aws"
      if [[ "$sub" == "ingest" ]]; then
        opts="$opts --raw-bucket"
      fi
      ;;
    completion)
      COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
      return 0
      ;;
    *)
      local opts="$common"
      ;;
  esac

  # The optional project dir comes before any flag.
  if [[ $dirs -eq 1 && "$cur" != -* ]]; then
    COMPREPLY=( $(compgen -o dirnames -- "$cur") )
    return 0
  fi

  COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
  return 0
}

complete -F _mrdp mrdp
`

const zshCompletionScript = `#compdef mrdp

_mrdp() {
  local -a cmds
  cmds=(
    'generate:generate synthetic surgical robotics data'
    'load:load generated data into the operational database'
    'schema:manage database schemas'
    'deploy:create or update the platform stacks'
    'destroy:delete the platform stacks'
    'stacks:show the status of the platform stacks'
    'etl:move data into the warehouse'
    'serve:run one of the platform HTTP services'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-l --local)'{-l,--local}'[show local timestamps]'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '--padding[spaces between columns]:padding'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--tldr[show tldr page]'
  )

  local -a aws
  aws=(
  '--profile[AWS profile]:profile'
  '--region[AWS region]:region'
  '--max-attempts[AWS API attempts per call]:attempts'
  '--s3-path-style[path-style S3 addressing]'
  )

  local -a plan
  plan=(
  '--project[project name]:project'
  '(-e --env)'{-e,--env}'[environment]:env'
  '--compute[compute flavour]:compute:(ecs eks)'
  '*--only[components]:component:(vpc security-groups s3 iam rds bastion ecs eks redshift)'
  '--pick[choose stacks interactively]'
  '--template-dir[template directory]:dir:_directories'
  '--artifact-bucket[template bucket]:bucket'
  '--poll-interval[poll interval]:duration'
  '--timeout[per-stack timeout]:duration'
  '--outputs-ttl[outputs cache ttl]:duration'
  )

  local -a rds redshift
  rds=(--rds-host --rds-port --rds-db --rds-user --rds-password --rds-secret-arn --rds-sslmode)
  redshift=(--redshift-host --redshift-port --redshift-db --redshift-user --redshift-password --redshift-secret-arn --redshift-sslmode)

  if (( CURRENT == 2 )); then
    _describe -t commands 'mrdp commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    generate)
      _arguments -C \
        $common \
        '--schema[list row keys]' \
        '--robots[number of robots]:n' \
        '--facilities[number of facilities]:n' \
        '--procedures[number of procedures]:n' \
        '--telemetry-samples[samples per procedure]:n' \
        '--maintenance-logs[number of maintenance records]:n' \
        '--start[first procedure date]:date' \
        '--end[last procedure date]:date' \
        '(-d --output-dir)'{-d,--output-dir}'[output directory]:dir:_directories' \
        '--seed[random seed]:seed'
      ;;
    load)
      _arguments -C \
        $common $aws $rds \
        '--schema[list row keys]' \
        '(-d --dir)'{-d,--dir}'[generated data directory]:dir:_directories' \
        '--telemetry[also load telemetry]' \
        '--truncate[empty tables first]' \
        '--upload[upload telemetry to S3]' \
        '--raw-bucket[raw bucket]:bucket' \
        '--gzip[gzip the upload]'
      ;;
    schema)
      if (( CURRENT == 3 )); then
        _values 'schema commands' apply seed-calendar
        return
      fi
      case $words[3] in
        apply)
          _arguments -C $common $aws $rds $redshift '--target[schema]:target:(oltp warehouse)'
          ;;
        seed-calendar)
          _arguments -C $common $aws $redshift '--from[first date]:date' '--to[last date]:date'
          ;;
      esac
      ;;
    deploy)
      _arguments -C $common $plan $aws '--schema[list row keys]' '--dry-run[print the plan]' '::ProjectDir:_directories'
      ;;
    destroy)
      _arguments -C $common $plan $aws '--schema[list row keys]' '--yes[confirm deletion]' '::ProjectDir:_directories'
      ;;
    stacks)
      if [[ $words[3] == diff ]]; then
        _arguments -C $plan $aws '*--ignore[keys to ignore]:key' '(-c --color)'{-c,--color}'[colored diff]' '::ProjectDir:_directories'
      else
        _arguments -C $common $plan $aws '--schema[list row keys]' '1::subcommand:(diff)' '::ProjectDir:_directories'
      fi
      ;;
    etl)
      if (( CURRENT == 3 )); then
        _values 'etl commands' run telemetry schedule history
        return
      fi
      local -a etl
      etl=(--staging-bucket --raw-bucket --iam-role --gzip '--ledger-dir[ledger directory]:dir:_directories')
      case $words[3] in
        run)
          _arguments -C $common $aws $rds $redshift $etl \
            '--type[etl type]:type:(full dimensions procedures maintenance)' \
            '--start[window start]:date' '--end[window end]:date' '--since-last[resume from the last run]'
          ;;
        telemetry)
          _arguments -C $common $aws $redshift $etl \
            '--prefix[raw prefix]:prefix' '--batch-date[batch folder]:date' \
            '--max-files[files per batch]:n' '--workers[concurrent downloads]:n'
          ;;
        schedule)
          _arguments -C $aws $rds $redshift $etl \
            '--cron[schedule]:spec' '--type[etl type]:type:(full dimensions procedures maintenance)' \
            '--since-last[resume from the last run]' '--prefix[raw prefix]:prefix' \
            '--max-files[files per batch]:n' '--workers[concurrent downloads]:n'
          ;;
        history)
          _arguments -C $common '--ledger-dir[ledger directory]:dir:_directories' '--limit[most runs]:n'
          ;;
      esac
      ;;
    serve)
      if (( CURRENT == 3 )); then
        _values 'serve commands' api ingest
        return
      fi
      _arguments -C $aws $rds '--addr[listen address]:addr' '--log-queries[log SQL]' '--raw-bucket[raw bucket]:bucket'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys
# is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _mrdp mrdp
`

func completionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	case "":
		// Try to detect from SHELL
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			fmt.Fprint(w, zshCompletionScript)
		case strings.HasSuffix(sh, "bash"):
			fmt.Fprint(w, bashCompletionScript)
		default:
			fmt.Fprintln(os.Stderr, "usage: mrdp completion [bash|zsh]")
		}
	default:
		return fmt.Errorf("unsupported shell %q (want bash or zsh)", shell)
	}
	return nil
}

func completionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "mrdp completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: completionCommandAction,
	}
}
