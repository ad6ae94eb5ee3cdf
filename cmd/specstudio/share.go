package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"specstudio/internal/project"
	"specstudio/internal/share"
)

func newShareCommand(ctx *commandContext) *cobra.Command {
	var secretFlag string

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Encode and decode share links",
	}
	cmd.PersistentFlags().StringVar(&secretFlag, "secret", "", "Signing secret (defaults to the configured share secret)")

	signingKey := func() ([]byte, error) {
		if secretFlag != "" {
			return []byte(secretFlag), nil
		}
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		if cfg.ShareSecret == "" {
			return nil, errors.New("share secret is not configured; set SPECSTUDIO_SHARE_SECRET or pass --secret")
		}
		return []byte(cfg.ShareSecret), nil
	}

	cmd.AddCommand(newShareEncodeCommand(ctx, signingKey))
	cmd.AddCommand(newShareDecodeCommand(signingKey))
	return cmd
}

func newShareEncodeCommand(ctx *commandContext, signingKey func() ([]byte, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "encode <snapshot.json|->",
		Short: "Sign a snapshot file and print its share link",
		Long:  "Reads snapshot JSON in the shape printed by `share decode --format json` and prints a share link.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatURL, formatJSON, formatTable); err != nil {
				return err
			}
			key, err := signingKey()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			snap, err := share.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			canonical, err := share.Marshal(snap)
			if err != nil {
				return err
			}
			token, err := share.Seal(key, canonical)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatTable:
				fmt.Fprintln(out, renderTable(
					[]string{"Field", "Value"},
					[][]string{
						{"ID", token.ShortID},
						{"Snapshot", humanize.IBytes(uint64(len(canonical)))},
						{"Token", humanize.IBytes(uint64(len(token.String())))},
						{"URL", token.URL(cfg.BaseURL)},
					},
				))
			case formatJSON:
				return writeJSON(out, map[string]string{
					"id":      token.ShortID,
					"url":     token.URL(cfg.BaseURL),
					"payload": token.Payload,
					"sig":     token.Signature,
				})
			case formatURL:
				fmt.Fprintln(out, token.URL(cfg.BaseURL))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatURL, "Output format: url, json or table")
	return cmd
}

func newShareDecodeCommand(signingKey func() ([]byte, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "decode <token|url>",
		Short: "Verify a share token and print its snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatTable, formatJSON, formatYAML); err != nil {
				return err
			}
			key, err := signingKey()
			if err != nil {
				return err
			}
			token := tokenFromArg(args[0])
			if len(token) > share.MaxTokenBytes {
				return fmt.Errorf("%s: token exceeds %s", share.UserMessage, humanize.IBytes(share.MaxTokenBytes))
			}
			snap, err := share.Decode(key, token)
			if err != nil {
				var decodeErr *share.DecodeError
				if errors.As(err, &decodeErr) {
					return errors.New(decodeErr.Message())
				}
				return err
			}
			canonical, err := share.Marshal(snap)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				var indented bytes.Buffer
				if err := json.Indent(&indented, canonical, "", "  "); err != nil {
					return err
				}
				indented.WriteByte('\n')
				_, err = indented.WriteTo(out)
				return err
			case formatYAML:
				data, err := canonicalYAML(canonical)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			default:
				fmt.Fprint(out, renderSnapshot(snap, len(canonical)))
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json or yaml")
	return cmd
}

// tokenFromArg accepts a bare token or a share URL carrying #p=<token>.
func tokenFromArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if _, fragment, ok := strings.Cut(arg, "#"+share.FragmentKey+"="); ok {
		return fragment
	}
	return arg
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(cmd.InOrStdin(), share.MaxSnapshotBytes+1))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// canonicalYAML re-emits canonical JSON as block-style YAML, keeping the
// wire field order.
func canonicalYAML(canonical []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(canonical, &doc); err != nil {
		return nil, fmt.Errorf("convert to yaml: %w", err)
	}
	clearStyle(&doc)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		clearStyle(child)
	}
}

func renderSnapshot(snap project.Snapshot, size int) string {
	var b strings.Builder
	packs := []string{}
	for _, name := range []string{project.PackCore, project.PackOpinionated, project.PackStrict} {
		if _, on := snap.Packs.Map()[name]; on {
			packs = append(packs, strings.TrimPrefix(name, "pack_"))
		}
	}
	b.WriteString(renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Script", humanize.Comma(int64(len([]rune(snap.Script)))) + " chars"},
			{"Rules", humanize.Comma(int64(len([]rune(snap.Rules)))) + " chars"},
			{"Scenes", strconv.Itoa(len(snap.Scenes))},
			{"Shots", strconv.Itoa(len(snap.Shots))},
			{"Packs", strings.Join(packs, ", ")},
			{"Size", humanize.IBytes(uint64(size))},
		},
	))
	b.WriteString("\n")

	if len(snap.Scenes) > 0 {
		rows := make([][]string, 0, len(snap.Scenes))
		for _, sc := range snap.Scenes {
			rows = append(rows, []string{sc.ID, sc.Title, sc.Goal, sc.Risk})
		}
		b.WriteString(renderTable([]string{"Scene", "Title", "Goal", "Risk"}, rows))
		b.WriteString("\n")
	}
	if len(snap.Shots) > 0 {
		rows := make([][]string, 0, len(snap.Shots))
		for _, sh := range snap.Shots {
			rows = append(rows, []string{sh.ID, sh.SceneID, sh.Title, string(sh.Status), string(sh.Priority), strconv.Itoa(len(sh.Checklist))})
		}
		b.WriteString(renderTable(
			[]string{"Shot", "Scene", "Title", "Status", "Priority", "Checklist"},
			rows,
			5,
		))
		b.WriteString("\n")
	}
	return b.String()
}
