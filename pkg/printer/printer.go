// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/exampletech/platformctl/pkg/discovery"
)

// Format selects how installed resources are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatName  Format = "name"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported output format.
var Formats = []Format{FormatTable, FormatWide, FormatName, FormatJSON, FormatYAML}

// ParseFormat returns the Format named s. An empty string selects FormatTable.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatTable, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, 0, len(Formats))
	for _, f := range Formats {
		names = append(names, string(f))
	}
	return "", fmt.Errorf("unknown output format %q, expected one of: %s", s, strings.Join(names, "|"))
}

// list is the document written by the json and yaml formats.
type list struct {
	Items []discovery.InstalledResource `json:"items"`
}

// Print writes resources to w in the given format. The input order is kept.
func Print(w io.Writer, format Format, resources []discovery.InstalledResource) error {
	switch format {
	case FormatTable, "":
		return printTable(w, resources, false)
	case FormatWide:
		return printTable(w, resources, true)
	case FormatName:
		for _, r := range resources {
			if _, err := fmt.Fprintln(w, Name(r)); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(newList(resources))
	case FormatYAML:
		out, err := yaml.Marshal(newList(resources))
		if err != nil {
			return fmt.Errorf("failed to marshal resources to yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Name renders a resource as Kind.version.group, the form accepted by discovery.ParseGVK.
func Name(r discovery.InstalledResource) string {
	return gvkName(r.GroupVersionKind())
}

func newList(resources []discovery.InstalledResource) list {
	if resources == nil {
		resources = []discovery.InstalledResource{}
	}
	return list{Items: resources}
}

func printTable(w io.Writer, resources []discovery.InstalledResource, wide bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 3, ' ', 0)

	header := "GROUP\tVERSION\tKIND"
	if wide {
		header += "\tRESOURCE\tNAMESPACED"
	}
	fmt.Fprintln(tw, header)

	for _, r := range resources {
		row := r.Group + "\t" + r.Version + "\t" + r.Kind
		if wide {
			row += "\t" + r.Resource + "\t" + strconv.FormatBool(r.Namespaced)
		}
		fmt.Fprintln(tw, row)
	}
	return tw.Flush()
}

// PrintChange writes one "+ Kind.version.group" line per added kind and one
// "- Kind.version.group" line per removed kind.
func PrintChange(w io.Writer, change discovery.Change) error {
	for _, gvk := range change.Added {
		if _, err := fmt.Fprintln(w, "+", gvkName(gvk)); err != nil {
			return err
		}
	}
	for _, gvk := range change.Removed {
		if _, err := fmt.Fprintln(w, "-", gvkName(gvk)); err != nil {
			return err
		}
	}
	return nil
}

func gvkName(gvk schema.GroupVersionKind) string {
	return fmt.Sprintf("%s.%s.%s", gvk.Kind, gvk.Version, gvk.Group)
}
