package cli

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/newspan/internal/config"
	"github.com/ppiankov/newspan/internal/source"
)

var importDryRun bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured news sources",
	RunE:  sourcesAction,
}

var sourcesImportCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Add feeds from an OPML file as custom sources",
	Args:  cobra.ExactArgs(1),
	RunE:  importAction,
}

func init() {
	sourcesImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be added without modifying config")
	sourcesCmd.AddCommand(sourcesImportCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func sourcesAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := source.NewRegistry(source.Merge(source.Defaults(), cfg.Sources))
	if err != nil {
		return fmt.Errorf("build source registry: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, s := range registry.All() {
		search := "no"
		if s.Search.URL != "" {
			search = "yes"
		}
		fmt.Fprintf(w, "%-10s %-28s feeds: %d  alt: %d  search: %s\n",
			s.ID, s.DisplayName(), len(s.Feeds), len(s.AltFeeds), search)
	}
	return nil
}

type opml struct {
	Body opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	XMLURL   string        `xml:"xmlUrl,attr"`
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// feedEntry is one feed found in an OPML file.
type feedEntry struct {
	Name string
	URL  string
}

func importAction(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	opmlPath := args[0]

	data, err := os.ReadFile(opmlPath)
	if err != nil {
		return fmt.Errorf("read OPML: %w", err)
	}

	var doc opml
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse OPML: %w", err)
	}

	feeds := extractFeeds(doc.Body.Outlines)
	if len(feeds) == 0 {
		fmt.Fprintln(w, "No feed URLs found in OPML file.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	existingURLs := make(map[string]bool)
	existingIDs := make(map[string]bool)
	for _, s := range source.Merge(source.Defaults(), cfg.Sources) {
		existingIDs[strings.ToLower(s.ID)] = true
		for _, f := range append(append([]string{}, s.Feeds...), s.AltFeeds...) {
			existingURLs[f] = true
		}
	}

	var added []source.Source
	skipped := 0
	for _, f := range feeds {
		if existingURLs[f.URL] {
			skipped++
			continue
		}
		existingURLs[f.URL] = true
		id := uniqueID(sourceID(f), existingIDs)
		existingIDs[id] = true
		added = append(added, source.Source{ID: id, Name: f.Name, Feeds: []string{f.URL}})
	}

	if len(added) == 0 {
		fmt.Fprintf(w, "All %d feeds already present, nothing to add.\n", skipped)
		return nil
	}

	if importDryRun {
		fmt.Fprintf(w, "Would add %d sources (skipping %d duplicates):\n", len(added), skipped)
		for _, s := range added {
			fmt.Fprintf(w, "  + %s  %s\n", s.ID, s.Feeds[0])
		}
		return nil
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	if err := mergeSources(configPath, added); err != nil {
		return fmt.Errorf("merge sources: %w", err)
	}

	fmt.Fprintf(w, "Added %d sources, skipped %d duplicates.\n", len(added), skipped)
	return nil
}

func extractFeeds(outlines []opmlOutline) []feedEntry {
	var feeds []feedEntry
	for _, o := range outlines {
		u := strings.TrimSpace(o.XMLURL)
		if u != "" && (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
			name := strings.TrimSpace(o.Title)
			if name == "" {
				name = strings.TrimSpace(o.Text)
			}
			feeds = append(feeds, feedEntry{Name: name, URL: u})
		}
		// Recurse into nested outlines (folders)
		feeds = append(feeds, extractFeeds(o.Outlines)...)
	}
	return feeds
}

// sourceID derives a lowercase id from the feed name, or its host.
func sourceID(f feedEntry) string {
	base := f.Name
	if base == "" {
		if u, err := url.Parse(f.URL); err == nil {
			base = strings.TrimPrefix(u.Hostname(), "www.")
		}
	}
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		id = "feed"
	}
	return id
}

func uniqueID(id string, taken map[string]bool) string {
	if !taken[id] {
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// mergeSources appends sources to the top-level sources sequence of
// config.yaml, creating the file or the key when missing. The rest of the
// document is preserved.
func mergeSources(configPath string, sources []source.Source) error {
	var doc yaml.Node
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config.yaml: top level is not a mapping")
	}

	seq := findMapValue(root, "sources")
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "sources"},
			seq,
		)
	}
	if seq.Kind != yaml.SequenceNode {
		// "sources:" with no value decodes as a null scalar.
		if seq.Tag != "!!null" {
			return fmt.Errorf("config.yaml: sources is not a list")
		}
		*seq = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}

	for _, s := range sources {
		var n yaml.Node
		if err := n.Encode(s); err != nil {
			return fmt.Errorf("encode source %s: %w", s.ID, err)
		}
		seq.Content = append(seq.Content, &n)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(configPath, out, 0o644)
}

func findMapValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
