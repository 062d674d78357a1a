package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	headerColor  = color.New(color.Bold)
	successColor = color.New(color.FgGreen)
	mutedColor   = color.New(color.FgHiBlack)
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printSuccess(msg string) {
	_, _ = successColor.Println(msg)
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", headerColor.Sprint(row[0]), row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = mutedColor.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, headerColor.Sprint(strings.Join(headers, "\t")))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatOrder(o *float64) string {
	if o == nil {
		return "-"
	}
	return strconv.FormatFloat(*o, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return ""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printModels(items []domain.Model) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Title,
			item.TableName,
			string(item.Type),
			formatOrder(item.Order),
			formatTime(item.UpdatedAt),
		})
	}
	printTable([]string{"ID", "TITLE", "TABLE_NAME", "TYPE", "ORDER", "UPDATED_AT"}, rows)
}

func printModel(m domain.Model) {
	display := "-"
	if pv := m.DisplayValue(); pv != nil {
		display = pv.Title
	}
	printKV([][2]string{
		{"id", m.ID},
		{"base_id", m.BaseID},
		{"title", m.Title},
		{"table_name", m.TableName},
		{"type", string(m.Type)},
		{"display_value", display},
		{"meta", m.Meta.String()},
	})
	if len(m.Columns) > 0 {
		fmt.Println()
		printColumns(m.Columns)
	}
	if len(m.Views) > 0 {
		fmt.Println()
		printViews(m.Views)
	}
}

func printColumns(items []domain.Column) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Title,
			item.ColumnName,
			string(item.UIDT),
			formatBool(item.PK),
			formatBool(item.PV),
			formatBool(item.System),
			formatOrder(item.Order),
		})
	}
	printTable([]string{"ID", "TITLE", "COLUMN_NAME", "UIDT", "PK", "PV", "SYSTEM", "ORDER"}, rows)
}

func printViews(items []domain.View) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Title,
			string(item.Type),
			formatBool(item.IsDefault),
			formatBool(item.Shared()),
			formatOrder(item.Order),
		})
	}
	printTable([]string{"ID", "TITLE", "TYPE", "DEFAULT", "SHARED", "ORDER"}, rows)
}

func printViewColumns(items []domain.ViewColumn) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.FkColumnID,
			formatBool(item.Show),
			formatOrder(item.Order),
			item.Width,
		})
	}
	printTable([]string{"ID", "COLUMN_ID", "SHOW", "ORDER", "WIDTH"}, rows)
}

func printDependencies(items []application.Dependency) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{string(item.Kind), item.ColumnID, string(item.UIDT)})
	}
	printTable([]string{"KIND", "COLUMN_ID", "UIDT"}, rows)
}

// writeSnapshot renders snapshots with their JSON field names in either format.
func writeSnapshot(items []application.ModelSnapshot, format, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "json":
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q", format)
}
