// Package docs renders the command reference embedded in README.md.
package docs

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
)

const generalSection = "General"

// CommandSections renders commands as markdown, one section per gating
// feature. Commands without a required feature go under "General", which
// comes first; the other sections are sorted by feature name.
func CommandSections(cmds []command.Metadata) string {
	sections := make(map[string][]command.Metadata)
	for _, m := range cmds {
		key := generalSection
		if len(m.RequiredFeatures) > 0 {
			key = string(m.RequiredFeatures[0])
		}
		sections[key] = append(sections[key], m)
	}

	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == generalSection || keys[j] == generalSection {
			return keys[i] == generalSection
		}
		return keys[i] < keys[j]
	})

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteString("\n")
		}
		title := k
		if k != generalSection {
			title = "Feature `" + k + "`"
		}
		fmt.Fprintf(&buf, "### %s\n\n", title)

		list := sections[k]
		sort.Slice(list, func(a, b int) bool { return list[a].Name < list[b].Name })
		for _, m := range list {
			fmt.Fprintf(&buf, "- **/%s** - %s%s\n", m.Name, m.Description, notes(m))
		}
	}
	return buf.String()
}

func notes(m command.Metadata) string {
	var parts []string
	if len(m.RequiredFeatures) > 1 {
		parts = append(parts, "also needs "+features.Join(m.RequiredFeatures[1:]))
	}
	if len(m.RequiredPermissions) > 0 {
		parts = append(parts, "requires "+command.PermissionList(m.RequiredPermissions))
	}
	if m.DMPermission {
		parts = append(parts, "works in DMs")
	}
	if len(parts) == 0 {
		return ""
	}
	return " _(" + strings.Join(parts, "; ") + ")_"
}

// UpdateReadme executes the template at tmplPath with the registry's command
// reference and writes the result to outPath.
func UpdateReadme(reg *command.Registry, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}

	all := reg.All()
	metas := make([]command.Metadata, len(all))
	for i, c := range all {
		metas[i] = c.Metadata
	}

	var out bytes.Buffer
	data := struct {
		CommandSections string
		CommandCount    int
	}{
		CommandSections: CommandSections(metas),
		CommandCount:    len(metas),
	}
	if err := tmpl.Execute(&out, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return os.WriteFile(outPath, out.Bytes(), 0644)
}
