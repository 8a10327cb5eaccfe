// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Command docsgen renders the markdown, man and tldr pages for every mrdp
// subcommand. Flags come from the live command tree; descriptions, examples
// and notes come from <docs>/templates/mrdp.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/mrdp/mrdp/internal/command"
)

type Config struct {
	Subcommands []Subcommand `yaml:"subcommands"`
}

type Subcommand struct {
	ID          string    `yaml:"id"`
	Short       string    `yaml:"short"`
	Description string    `yaml:"description"`
	Usage       string    `yaml:"usage"`
	Flags       []Flag    `yaml:"flags"`
	Examples    []Example `yaml:"examples"`
	Notes       []string  `yaml:"notes,omitempty"`
}

type Flag struct {
	ID          string `yaml:"id"`
	Syntax      string `yaml:"syntax"`
	Description string `yaml:"description"`
	Default     string `yaml:"default,omitempty"`
	More        string `yaml:"more,omitempty"`
}

type Example struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

type TemplateData struct {
	Subcommand
	Date    string
	Version string
	IDUpper string
}

type Outputs struct {
	Template string
	Folder   string
	Prefix   string
	Suffix   string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: docsgen <docs dir>")
		os.Exit(1)
	}
	docs := os.Args[1]

	data, err := os.ReadFile(filepath.Join(docs, "templates", "mrdp.yaml"))
	if err != nil {
		panic(err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		panic(err)
	}

	app, err := command.InitApp(context.Background(), []string{"mrdp"})
	if err != nil {
		panic(err)
	}
	live := map[string]*cli.Command{}
	walk(app, "", live)

	version := getVersion()
	for _, sub := range config.Subcommands {
		cmd, ok := live[sub.ID]
		if !ok {
			fmt.Fprintf(os.Stderr, "skipping %s: no such command\n", sub.ID)
			continue
		}
		sub.Flags = mergeFlags(cmd, sub.Flags)
		if sub.Usage == "" {
			sub.Usage = cmd.UsageText
		}
		if sub.Short == "" {
			sub.Short = cmd.Usage
		}

		metadata := TemplateData{
			Subcommand: sub,
			Date:       time.Now().Format("January 2, 2006"),
			Version:    version,
			IDUpper:    strings.ToUpper(sub.ID),
		}

		types := []Outputs{
			{Template: docs + "/templates/mrdp.md.tmpl", Folder: docs + "/commands/", Suffix: ".md"},
			{Template: docs + "/templates/mrdp.man.tmpl", Folder: docs + "/man/share/man1/", Prefix: "mrdp-", Suffix: ".1"},
			{Template: docs + "/templates/mrdp.tldr.tmpl", Folder: docs + "/tldr/", Prefix: "mrdp-", Suffix: ".md"},
		}

		for _, t := range types {
			if err := render(t, sub.ID, metadata); err != nil {
				panic(err)
			}
		}
	}
}

// walk indexes every command under its dash-joined path, e.g. "etl-run".
func walk(cmd *cli.Command, prefix string, out map[string]*cli.Command) {
	for _, sub := range cmd.Commands {
		id := sub.Name
		if prefix != "" {
			id = prefix + "-" + sub.Name
		}
		out[id] = sub
		walk(sub, id, out)
	}
}

// mergeFlags describes every flag of cmd, preferring the hand-written
// entries in documented.
func mergeFlags(cmd *cli.Command, documented []Flag) []Flag {
	byID := map[string]Flag{}
	for _, f := range documented {
		byID[f.ID] = f
	}

	var flags []Flag
	for _, fl := range cmd.Flags {
		names := fl.Names()
		f, ok := byID[names[0]]
		if !ok {
			f = Flag{ID: names[0]}
		}
		if f.Syntax == "" {
			f.Syntax = syntax(names)
		}
		if df, ok := fl.(cli.DocGenerationFlag); ok {
			if f.Description == "" {
				f.Description = df.GetUsage()
			}
			if f.Default == "" && df.TakesValue() {
				f.Default = df.GetValue()
			}
		}
		flags = append(flags, f)
	}

	sort.Slice(flags, func(i, j int) bool {
		return flags[i].ID < flags[j].ID
	})
	return flags
}

func syntax(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if len(n) == 1 {
			parts = append(parts, "-"+n)
		} else {
			parts = append(parts, "--"+n)
		}
	}
	return strings.Join(parts, ", ")
}

func render(t Outputs, id string, metadata TemplateData) error {
	if err := os.MkdirAll(t.Folder, 0755); err != nil {
		return err
	}

	path := t.Folder + t.Prefix + id + t.Suffix
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Println("Generating", path)
	tmpl, err := template.ParseFiles(t.Template)
	if err != nil {
		return err
	}
	return tmpl.Execute(file, metadata)
}

// getVersion returns the version string from git tags, stripping the leading
// "v" prefix. Falls back to "dev" if git describe fails.
func getVersion() string {
	out, err := exec.Command("git", "describe", "--tags", "--abbrev=0").Output()
	if err != nil {
		return "dev"
	}

	version := strings.TrimSpace(string(out))
	return strings.TrimPrefix(version, "v")
}
