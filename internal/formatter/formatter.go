// package formatter provides functions to export stacks to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// StackMetadata is a stack without its tracks.
type StackMetadata struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Summary        string             `json:"summary"`
	CreatedAt      time.Time          `json:"createdAt"`
	TrackCount     int                `json:"trackCount"`
	Sources        []models.Seed      `json:"sources"`
	ContainersUsed []models.Container `json:"containersUsed"`
}

// Metadata returns the stack's metadata.
func Metadata(stack *models.Stack) StackMetadata {
	return StackMetadata{
		ID:             stack.ID,
		Name:           stack.Name,
		Summary:        stack.Summary,
		CreatedAt:      stack.CreatedAt,
		TrackCount:     len(stack.Tracks),
		Sources:        stack.Sources,
		ContainersUsed: stack.ContainersUsed,
	}
}

// ParseFormat normalizes a user-supplied format name. "md" and "text" are accepted aliases.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, s)
	}
}

// Render encodes a stack in the given format.
func Render(stack *models.Stack, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(stack)
	case FormatMarkdown:
		return ExportToMarkdown(stack)
	case FormatText:
		return ExportToText(stack)
	default:
		return shared.MarshalJSON(stack, true)
	}
}

// ExportToCSV converts a Stack to CSV format with columns: Position, Artist, Title, Canonical ID, Playback URL, Container, Seed
func ExportToCSV(stack *models.Stack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Artist", "Title", "Canonical ID", "Playback URL", "Container", "Seed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range stack.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Artist,
			track.Title,
			track.CanonicalID,
			track.PlaybackURL,
			track.ContainerID,
			track.Provenance.String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Stack to Markdown with its sources, episodes and tracks
func ExportToMarkdown(stack *models.Stack) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", stack.Name)
	if stack.Summary != "" {
		fmt.Fprintf(&buf, "%s\n\n", stack.Summary)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(stack.Tracks))
	fmt.Fprintf(&buf, "**Created**: %s\n\n", stack.CreatedAt.Format(time.RFC1123))

	if len(stack.Sources) > 0 {
		buf.WriteString("## Seeds\n\n")
		for _, seed := range stack.Sources {
			fmt.Fprintf(&buf, "- %s (%s)\n", seed.String(), seed.Kind)
		}
		buf.WriteString("\n")
	}

	if len(stack.ContainersUsed) > 0 {
		buf.WriteString("## Episodes\n\n")
		for _, c := range stack.ContainersUsed {
			title := c.Title
			if title == "" {
				title = c.ID
			}
			if c.URL != "" {
				title = fmt.Sprintf("[%s](%s)", title, c.URL)
			}
			fmt.Fprintf(&buf, "- %s, %s", title, c.Source.DisplayName())
			if !c.PublishedAt.IsZero() {
				fmt.Fprintf(&buf, ", %s", c.PublishedAt.Format("2006-01-02"))
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range stack.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s", i+1, track.Artist, track.Title)
		if track.PlaybackURL != "" {
			fmt.Fprintf(&buf, " [listen](%s)", track.PlaybackURL)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Stack to plain text format
func ExportToText(stack *models.Stack) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Stack: %s\n", stack.Name)
	if stack.Summary != "" {
		fmt.Fprintf(&buf, "Summary: %s\n", stack.Summary)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(stack.Tracks))

	for i, track := range stack.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Title)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of stack metadata (without tracks)
func ToMetadataJSON(stack *models.Stack) ([]byte, error) {
	return shared.MarshalJSON(Metadata(stack), true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a stack to CSV format with accompanying metadata JSON file.
//
// Defaults to the stack ID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(stack *models.Stack, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = stack.ID
	}

	csvData, err := ExportToCSV(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(stack)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a stack to {dir}/README.md. Directory name defaults to the stack ID.
func WriteMarkdownExport(stack *models.Stack, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = stack.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(stack)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a stack to plain text format.
//
// Defaults to {stack.ID}_tracks.txt as the filename.
func WriteTextExport(stack *models.Stack, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", stack.ID)
	}

	textData, err := ExportToText(stack)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a full stack as indented JSON. Defaults to {stack.ID}.json.
func WriteJSONExport(stack *models.Stack, path string) (string, error) {
	if path == "" {
		path = stack.ID + ".json"
	}

	data, err := shared.MarshalJSON(stack, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}

	return path, nil
}

// WriteExport writes stack into dir using the format's file layout and returns the files created.
func WriteExport(stack *models.Stack, format, dir string) ([]string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(stack, filepath.Join(dir, stack.ID))
		if err != nil {
			return nil, err
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case FormatMarkdown:
		path, err := WriteMarkdownExport(stack, filepath.Join(dir, stack.ID))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	case FormatText:
		path, err := WriteTextExport(stack, filepath.Join(dir, stack.ID+"_tracks.txt"))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		path, err := WriteJSONExport(stack, filepath.Join(dir, stack.ID+".json"))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
}
