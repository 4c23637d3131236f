// ABOUTME: Command-line interface for the fable-vault story vault
// ABOUTME: Adds, lists, searches, queues, shares, and exports stories

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/natefinch/atomic"

	"github.com/2389/fable-vault/internal/config"
	"github.com/2389/fable-vault/internal/preview"
	"github.com/2389/fable-vault/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// categoryRe is the category shape the store trusts callers to enforce.
var categoryRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const banner = `
  __          _      _                                  _  _
 / _|  __ _ | |__  | |  ___        __   __  __ _  _   _| || |_
| |_  / _' || '_ \ | | / _ \ _____ \ \ / / / _' || | | || || __|
|  _|| (_| || |_) || ||  __/|_____| \ V / | (_| || |_| || || |_
|_|   \__,_||_.__/ |_| \___|         \_/   \__,_| \__,_||_| \__|
`

// getConfigPath returns the path to the vault config file.
// Priority: FABLE_VAULT_CONFIG env var > ./fable-vault.yaml >
// XDG_CONFIG_HOME/fable-vault/config.yaml > ~/.config/fable-vault/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FABLE_VAULT_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("fable-vault.yaml"); err == nil {
		return "fable-vault.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "fable-vault.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fable-vault", "config.yaml")
}

// getDataPath returns the path to the vault data directory.
// Priority: XDG_DATA_HOME/fable-vault > ~/.local/share/fable-vault
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "fable-vault")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit()
	case "seed":
		err = cmdSeed()
	case "add":
		err = cmdAdd(args)
	case "list":
		err = cmdList(args)
	case "show":
		err = cmdShow(args)
	case "update":
		err = cmdUpdate(args)
	case "favorite":
		err = cmdFavorite(args)
	case "rm":
		err = cmdRm(args)
	case "search":
		err = cmdSearch(args)
	case "queue":
		err = cmdQueue(args)
	case "share":
		err = cmdShare(args)
	case "unshare":
		err = cmdUnshare(args)
	case "shared":
		err = cmdShared()
	case "pending-audio":
		err = cmdPendingAudio(args)
	case "status":
		err = cmdStatus()
	case "export":
		err = cmdExport(args)
	case "import":
		err = cmdImport(args)
	case "version":
		fmt.Printf("fable-vault %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: fable-vault <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  init                        Create a config file interactively")
	fmt.Println("  seed                        Load sample stories into an empty vault")
	fmt.Println("  add <text> [flags]          Add a story (--category, --topic, --tags a,b)")
	fmt.Println("  list [category]             List stories, newest first")
	fmt.Println("  show <id> [--html]          Show one story (--html renders markdown)")
	fmt.Println("  update <id> [text] [flags]  Edit a story (--category, --topic)")
	fmt.Println("  favorite <id> on|off        Mark or unmark a favorite")
	fmt.Println("  rm <id>                     Delete a story and its audio files")
	fmt.Println("  search <query> [flags]      Search stories (--limit n, --substring)")
	fmt.Println("  queue                       Show the playback queue")
	fmt.Println("  queue add|rm <id>           Append to / remove from the queue")
	fmt.Println("  queue set <id> [<id>...]    Replace the queue")
	fmt.Println("  queue clear                 Empty the queue")
	fmt.Println("  share <id>                  Share a story and print its token")
	fmt.Println("  unshare <id>                Revoke sharing")
	fmt.Println("  shared                      List shared stories")
	fmt.Println("  pending-audio [n]           List newest stories without narration")
	fmt.Println("  status                      Show vault statistics")
	fmt.Println("  export <file>               Export stories to JSON")
	fmt.Println("  import <file>               Import stories from a JSON export")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  FABLE_VAULT_CONFIG          Config file path (default: ~/.config/fable-vault/config.yaml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  fable-vault add \"Once there was a brave little fox...\" --category bedtime")
	fmt.Println("  fable-vault search fox --limit 5")
	fmt.Println("  fable-vault queue add 3")
	fmt.Println()
}

// openVault loads configuration, wires the default logger, and opens an
// initialized vault. The caller owns Close.
func openVault() (*store.SQLiteStore, *config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(setupLogger(cfg.Logging))

	s, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, cfg.Storage.AudioDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening vault: %w", err)
	}
	if err := s.Initialize(context.Background()); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("initializing vault: %w", err)
	}

	if cfg.Seed.Enabled {
		if _, err := s.SeedSampleStories(context.Background()); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("seeding sample stories: %w", err)
		}
	}

	return s, cfg, nil
}

func cmdSeed() error {
	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.SeedSampleStories(context.Background())
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Vault already has stories; nothing to seed.")
		return nil
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Seeded %d sample stories\n", n)
	return nil
}

func cmdAdd(args []string) error {
	var text, category, topic, tagsCSV string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--category" && i+1 < len(args):
			category = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--category="):
			category = strings.TrimPrefix(args[i], "--category=")
		case args[i] == "--topic" && i+1 < len(args):
			topic = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--topic="):
			topic = strings.TrimPrefix(args[i], "--topic=")
		case args[i] == "--tags" && i+1 < len(args):
			tagsCSV = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--tags="):
			tagsCSV = strings.TrimPrefix(args[i], "--tags=")
		case strings.HasPrefix(args[i], "--"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case text == "":
			text = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	// "-" reads the story from stdin, for piping out of a generator
	if text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: fable-vault add <text> [--category <c>] [--topic <t>] [--tags a,b]")
	}
	if category == "" {
		category = "bedtime"
	}
	if !categoryRe.MatchString(category) {
		return fmt.Errorf("invalid category %q (letters, digits, - and _ only)", category)
	}

	var tags []string
	for _, tag := range strings.Split(tagsCSV, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	story, duplicate, err := s.CreateStory(context.Background(), text, category, topic, tags)
	if err != nil {
		return err
	}

	if duplicate {
		yellow := color.New(color.FgYellow)
		yellow.Printf("Story %d already has this text; nothing added.\n", story.ID)
		return nil
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Added story %d ", story.ID)
	fmt.Printf("(%s)\n", previewLine(story.Text, 48))
	return nil
}

func cmdList(args []string) error {
	var category string
	if len(args) > 0 {
		category = args[0]
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	var stories []*store.StoryWithAudio
	if category != "" {
		stories, err = s.ListStoriesByCategory(context.Background(), category)
	} else {
		stories, err = s.ListStories(context.Background())
	}
	if err != nil {
		return err
	}

	if len(stories) == 0 {
		fmt.Println("No stories yet. Try: fable-vault add \"Once upon a time...\"")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCATEGORY\tTOPIC\tFAV\tAUDIO\tCREATED\tPREVIEW")
	fmt.Fprintln(w, "  --\t--------\t-----\t---\t-----\t-------\t-------")

	for _, swa := range stories {
		st := swa.Story
		fav := ""
		if st.IsFavorite {
			fav = "★"
		}
		audio := ""
		if swa.Audio != nil {
			audio = "♪"
		}
		created := st.CreatedAt.Format("Jan 02 15:04")
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.ID, st.Category, st.Topic, fav, audio, created, previewLine(st.Text, 40))
	}
	w.Flush()

	return nil
}

func cmdShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault show <id> [--html]")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}
	var asHTML bool
	for _, arg := range args[1:] {
		switch arg {
		case "--html":
			asHTML = true
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	swa, err := s.GetStoryWithAudio(context.Background(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("story %d not found", id)
		}
		return err
	}

	if asHTML {
		html, err := preview.Render(swa.Story.Text)
		if err != nil {
			return fmt.Errorf("rendering story: %w", err)
		}
		fmt.Print(string(html))
		return nil
	}

	printStoryDetail(swa)
	return nil
}

func printStoryDetail(swa *store.StoryWithAudio) {
	st := swa.Story
	cyan := color.New(color.FgCyan, color.Bold)

	cyan.Printf("Story %d\n", st.ID)
	fmt.Printf("  Category:  %s\n", st.Category)
	if st.Topic != "" {
		fmt.Printf("  Topic:     %s\n", st.Topic)
	}
	if len(st.Tags) > 0 {
		fmt.Printf("  Tags:      %s\n", strings.Join(st.Tags, ", "))
	}
	fmt.Printf("  Favorite:  %s\n", yesNo(st.IsFavorite))
	fmt.Printf("  Created:   %s\n", st.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Updated:   %s\n", st.UpdatedAt.Format(time.RFC3339))
	if st.IsShared {
		fmt.Printf("  Shared:    %s (token %s)\n", st.SharedAt.Format(time.RFC3339), st.ShareToken)
	}
	if swa.Audio != nil {
		fmt.Printf("  Audio:     %s", swa.Audio.FilePath)
		if swa.Audio.VoiceID != "" {
			fmt.Printf(" (voice %s)", swa.Audio.VoiceID)
		}
		fmt.Println()
	} else {
		fmt.Printf("  Audio:     none\n")
	}
	fmt.Println()
	fmt.Println(st.Text)
}

func cmdUpdate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault update <id> [new text] [--category <c>] [--topic <t>]")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}

	var text, category, topic string
	var haveText, haveCategory, haveTopic bool
	for i := 1; i < len(args); i++ {
		switch {
		case args[i] == "--category" && i+1 < len(args):
			category, haveCategory = args[i+1], true
			i++
		case strings.HasPrefix(args[i], "--category="):
			category, haveCategory = strings.TrimPrefix(args[i], "--category="), true
		case args[i] == "--topic" && i+1 < len(args):
			topic, haveTopic = args[i+1], true
			i++
		case strings.HasPrefix(args[i], "--topic="):
			topic, haveTopic = strings.TrimPrefix(args[i], "--topic="), true
		case strings.HasPrefix(args[i], "--"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case !haveText:
			text, haveText = args[i], true
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if !haveText && !haveCategory && !haveTopic {
		return fmt.Errorf("nothing to update")
	}
	if haveCategory && !categoryRe.MatchString(category) {
		return fmt.Errorf("invalid category %q (letters, digits, - and _ only)", category)
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	current, err := s.GetStory(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("story %d not found", id)
		}
		return err
	}

	if !haveText {
		text = current.Text
	}
	if !haveCategory {
		category = current.Category
	}
	if !haveTopic {
		topic = current.Topic
	}

	if _, err := s.UpdateStory(ctx, id, text, category, topic); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Updated story %d\n", id)
	return nil
}

func cmdFavorite(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: fable-vault favorite <id> on|off")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}

	var favorite bool
	switch args[1] {
	case "on":
		favorite = true
	case "off":
		favorite = false
	default:
		return fmt.Errorf("usage: fable-vault favorite <id> on|off")
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.SetStoryFavorite(context.Background(), id, favorite); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("story %d not found", id)
		}
		return err
	}

	green := color.New(color.FgGreen)
	if favorite {
		green.Printf("✓ Story %d marked as favorite\n", id)
	} else {
		green.Printf("✓ Story %d unmarked\n", id)
	}
	return nil
}

func cmdRm(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault rm <id>")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.DeleteStory(context.Background(), id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("story %d not found", id)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Removed story %d\n", id)
	return nil
}

func cmdSearch(args []string) error {
	var terms []string
	limit := 0
	useIndex := true
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[i+1])
			}
			limit = n
			i++
		case strings.HasPrefix(args[i], "--limit="):
			n, err := strconv.Atoi(strings.TrimPrefix(args[i], "--limit="))
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[i])
			}
			limit = n
		case args[i] == "--substring":
			useIndex = false
		case strings.HasPrefix(args[i], "--"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			terms = append(terms, args[i])
		}
	}
	if len(terms) == 0 {
		return fmt.Errorf("usage: fable-vault search <query> [--limit n] [--substring]")
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.SearchStories(context.Background(), strings.Join(terms, " "), limit, useIndex)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tRANK\tCATEGORY\tAUDIO\tPREVIEW")
	fmt.Fprintln(w, "  --\t----\t--------\t-----\t-------")

	for _, r := range results {
		rank := "-"
		if r.Rank != nil {
			rank = fmt.Sprintf("%.1f", *r.Rank)
		}
		audio := ""
		if r.Audio != nil {
			audio = "♪"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			r.Story.ID, rank, r.Story.Category, audio, previewLine(r.Story.Text, 48))
	}
	w.Flush()

	return nil
}

func cmdQueue(args []string) error {
	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	if len(args) == 0 {
		return printQueue(ctx, s)
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: fable-vault queue add <id>")
		}
		id, err := parseStoryID(args[1])
		if err != nil {
			return err
		}
		added, err := s.AppendToQueue(ctx, id)
		if err != nil {
			return err
		}
		if !added {
			color.New(color.FgYellow).Printf("Story %d is already queued.\n", id)
			return nil
		}
		color.New(color.FgGreen).Printf("✓ Queued story %d\n", id)
		return nil

	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: fable-vault queue rm <id>")
		}
		id, err := parseStoryID(args[1])
		if err != nil {
			return err
		}
		removed, err := s.RemoveFromQueue(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			color.New(color.FgYellow).Printf("Story %d is not in the queue.\n", id)
			return nil
		}
		color.New(color.FgGreen).Printf("✓ Removed story %d from the queue\n", id)
		return nil

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: fable-vault queue set <id> [<id>...]")
		}
		ids := make([]int64, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := parseStoryID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if err := s.SetQueue(ctx, ids); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("✓ Queue set (%d stories)\n", len(ids))
		return nil

	case "clear":
		if err := s.SetQueue(ctx, nil); err != nil {
			return err
		}
		color.New(color.FgGreen).Println("✓ Queue cleared")
		return nil

	default:
		return fmt.Errorf("unknown queue command: %s (want add, rm, set or clear)", args[0])
	}
}

func printQueue(ctx context.Context, s *store.SQLiteStore) error {
	ids, err := s.GetQueue(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("Queue is empty. Try: fable-vault queue add <id>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  POS\tID\tCATEGORY\tPREVIEW")
	fmt.Fprintln(w, "  ---\t--\t--------\t-------")

	for i, id := range ids {
		st, err := s.GetStory(ctx, id)
		if err != nil {
			return fmt.Errorf("loading queued story %d: %w", id, err)
		}
		fmt.Fprintf(w, "  %d\t%d\t%s\t%s\n", i+1, st.ID, st.Category, previewLine(st.Text, 48))
	}
	w.Flush()

	return nil
}

func cmdShare(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault share <id>")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	token, err := s.ShareStory(context.Background(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("story %d not found", id)
		}
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Story %d shared\n", id)
	fmt.Printf("  Token: %s\n", token)
	return nil
}

func cmdUnshare(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault unshare <id>")
	}
	id, err := parseStoryID(args[0])
	if err != nil {
		return err
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	revoked, err := s.UnshareStory(context.Background(), id)
	if err != nil {
		return err
	}
	if !revoked {
		color.New(color.FgYellow).Printf("Story %d was not shared.\n", id)
		return nil
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Sharing revoked for story %d\n", id)
	return nil
}

func cmdShared() error {
	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	stories, err := s.ListSharedStories(context.Background())
	if err != nil {
		return err
	}

	if len(stories) == 0 {
		fmt.Println("No shared stories.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTOKEN\tSHARED\tCATEGORY\tPREVIEW")
	fmt.Fprintln(w, "  --\t-----\t------\t--------\t-------")

	for _, st := range stories {
		shared := ""
		if st.SharedAt != nil {
			shared = st.SharedAt.Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			st.ID, st.ShareToken, shared, st.Category, previewLine(st.Text, 40))
	}
	w.Flush()

	return nil
}

func cmdPendingAudio(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	stories, err := s.ListRecentStoriesWithoutAudio(context.Background(), limit)
	if err != nil {
		return err
	}

	if len(stories) == 0 {
		color.New(color.FgGreen).Println("✓ Every story has narration audio")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCATEGORY\tCREATED\tPREVIEW")
	fmt.Fprintln(w, "  --\t--------\t-------\t-------")

	for _, st := range stories {
		created := st.CreatedAt.Format("Jan 02 15:04")
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", st.ID, st.Category, created, previewLine(st.Text, 48))
	}
	w.Flush()

	return nil
}

func cmdStatus() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	s, cfg, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	green.Printf("  Database:   ")
	fmt.Println(cfg.Storage.DatabasePath)
	green.Printf("  Audio dir:  ")
	fmt.Println(cfg.Storage.AudioDir)
	fmt.Println()

	yellow.Println("  Contents:")
	fmt.Printf("    Stories:         %d\n", stats.Stories)
	fmt.Printf("    Favorites:       %d\n", stats.Favorites)
	fmt.Printf("    Shared:          %d\n", stats.Shared)
	fmt.Printf("    Queued:          %d\n", stats.Queued)
	fmt.Printf("    Narrations:      %d\n", stats.Narrations)
	fmt.Printf("    Awaiting audio:  %d\n", stats.AwaitingAudio)
	fmt.Println()

	return nil
}

func cmdExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault export <file>")
	}
	file := args[0]

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	var buf bytes.Buffer
	if err := s.Export(context.Background(), &buf); err != nil {
		return fmt.Errorf("exporting vault: %w", err)
	}

	if err := atomic.WriteFile(file, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Vault exported to %s\n", file)
	return nil
}

func cmdImport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fable-vault import <file>")
	}
	file := args[0]

	s, _, err := openVault()
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	n, err := s.Import(context.Background(), f)
	if err != nil {
		return fmt.Errorf("importing vault: %w", err)
	}

	if n == 0 {
		fmt.Println("No new stories to import.")
		return nil
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Imported %d stories from %s\n", n, file)
	return nil
}

func cmdInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("fable-vault configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "vault.db")
	defaultAudioDir := filepath.Join(defaultDataPath, "audio")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Storage
	fmt.Println("\n--- Storage Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)
	audioDir := prompt(reader, "Narration audio directory", defaultAudioDir)

	// Seed
	fmt.Println("\n--- Sample Stories ---")
	seedStr := prompt(reader, "Seed sample stories on first run?", "yes")
	seedEnabled := strings.ToLower(seedStr) == "yes" || strings.ToLower(seedStr) == "y"

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# fable-vault configuration\n")
	cfg.WriteString("# Generated by fable-vault init\n\n")

	cfg.WriteString("storage:\n")
	cfg.WriteString(fmt.Sprintf("  database_path: \"%s\"\n", dbPath))
	cfg.WriteString(fmt.Sprintf("  audio_dir: \"%s\"\n", audioDir))
	cfg.WriteString("\n")

	cfg.WriteString("seed:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", seedEnabled))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo add your first story:")
	fmt.Printf("  fable-vault add \"Once upon a time...\"\n")

	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// prompt asks a question with an optional default value.
func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func parseStoryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid story id %q", s)
	}
	return id, nil
}

// previewLine flattens story text to a single short line for table output.
func previewLine(text string, max int) string {
	return preview.Truncate(strings.Join(strings.Fields(text), " "), max)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
