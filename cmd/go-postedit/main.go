// Command go-postedit post-edits machine translations from the command
// line. It reads tab-separated (source, machine translation) pairs from
// stdin, one segment per line, and prints the post-edited text.
//
// The service configuration (model directory, language pairs, dictionaries)
// comes from the environment; see the config package.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/apedit/go-postedit/config"
	"github.com/apedit/go-postedit/internal/files"
	"github.com/apedit/go-postedit/model"
	"github.com/apedit/go-postedit/nlp/heuralign"
	"github.com/apedit/go-postedit/nlp/lexicon"
	"github.com/apedit/go-postedit/service"
	"github.com/apedit/go-postedit/terminology"
	"github.com/apedit/go-postedit/translator"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(5)
	srcStyle   = lipgloss.NewStyle().Faint(true)
	mtStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	apeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	root := newRootCmd()
	root.PersistentFlags().AddFlagSet(pflag.CommandLine)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// rootOptions holds the command-line flags.
type rootOptions struct {
	pair    string
	dicts   []string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "go-postedit",
		Short: "Post-edit machine translations from stdin",
		Long: "go-postedit reads tab-separated (source, machine translation) pairs\n" +
			"from stdin, one segment per line, and prints the post-edited text.\n" +
			"The service configuration (model directory, language pairs,\n" +
			"dictionaries) comes from the environment; see the config package.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&opts.pair, "pair", "", "language pair to translate, e.g. de-en (default: the first configured pair)")
	cmd.Flags().StringSliceVar(&opts.dicts, "dicts", nil, "dictionary names to apply, in order")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print source and MT text alongside the post-edit")
	return cmd
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	pair := opts.pair
	if pair == "" {
		pair = cfg.LanguagePairs[0]
	}
	srcLang, trgLang, ok := config.SplitPair(pair)
	if !ok {
		return fmt.Errorf("malformed language pair %q", pair)
	}

	req := service.Request{
		SrcLang:       srcLang,
		TrgLang:       trgLang,
		SelectedDicts: opts.dicts,
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		src, mt, found := strings.Cut(line, "\t")
		if !found {
			return fmt.Errorf("expected tab-separated source and machine translation, got %q", line)
		}
		seg, err := service.NewSegment(src).WithMT(mt)
		if err != nil {
			return err
		}
		req.Segments = append(req.Segments, seg)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(req.Segments) == 0 {
		return fmt.Errorf("no input segments on stdin")
	}

	resp, err := svc.Translate(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, seg := range resp.Segments {
		if opts.verbose {
			fmt.Fprintln(out, labelStyle.Render("src")+srcStyle.Render(seg.SrcText))
			fmt.Fprintln(out, labelStyle.Render("mt")+mtStyle.Render(seg.MTText))
			fmt.Fprintln(out, labelStyle.Render("ape")+apeStyle.Render(seg.APEText))
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, seg.APEText)
		}
	}
	return nil
}

func buildService(cfg *config.Config) (*service.Service, error) {
	svc := service.New()
	if len(cfg.Dictionaries) > 0 {
		if err := svc.LoadDictionaries(cfg.DictionaryDir, cfg.Dictionaries, cfg.EnableNToNDicts); err != nil {
			return nil, err
		}
	}

	if !cfg.MockModel {
		klog.Warning("No inference backend is linked into this binary; using the echo model")
	}

	for i, pair := range cfg.LanguagePairs {
		klog.Infof("Initializing model %d/%d: %s", i+1, len(cfg.LanguagePairs), pair)
		srcLang, trgLang, ok := config.SplitPair(pair)
		if !ok {
			return nil, fmt.Errorf("malformed language pair %q", pair)
		}
		modelDir := cfg.ModelPath(pair)

		proc, err := loadTerminology(modelDir)
		if err != nil {
			return nil, err
		}
		tr, err := translator.New(modelDir, translator.Options{
			SrcLang:     srcLang,
			TgtLang:     trgLang,
			Generator:   model.Echo{},
			Terminology: proc,
			Workers:     cfg.Workers,
		})
		if err != nil {
			return nil, err
		}
		if err := svc.RegisterTranslator(srcLang, trgLang, tr); err != nil {
			return nil, err
		}
	}
	klog.Info("Initialization complete, service is available")
	return svc, nil
}

// loadTerminology builds a terminology processor when the model directory
// ships a lemma lexicon; without one, dictionary hints are skipped.
func loadTerminology(modelDir string) (*terminology.Processor, error) {
	lexPath := modelDir + "/lexicon.tsv"
	if !files.IsFile(lexPath) {
		klog.V(1).Infof("No lexicon at %q, terminology encoding disabled for this pair", lexPath)
		return nil, nil
	}
	tagger, err := lexicon.Load(lexPath)
	if err != nil {
		return nil, err
	}
	return terminology.New(tagger, tagger, heuralign.New(), nil, terminology.Config{})
}
