// Command annotconv converts coreference annotations between the CoNLL-Coref
// column format, the generic JSON interchange document, and CoNLL-U token
// sources, and validates, round-trips and batch-converts corpora.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/annotconv/core/chains"
	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
	"github.com/FocuswithJustin/annotconv/core/sqlite"
	"github.com/FocuswithJustin/annotconv/internal/archive"
	"github.com/FocuswithJustin/annotconv/internal/batch"
	"github.com/FocuswithJustin/annotconv/internal/embedded"
	"github.com/FocuswithJustin/annotconv/internal/fileutil"
	"github.com/FocuswithJustin/annotconv/internal/logging"
	"github.com/FocuswithJustin/annotconv/internal/store"
	"github.com/FocuswithJustin/annotconv/internal/validation"
)

const version = "0.4.0"

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// CLI defines the command-line interface for annotconv.
var CLI struct {
	Config    kong.ConfigFlag `help:"Load flag defaults from a JSON file (keys: log-level, log_level or logLevel)"`
	LogLevel  string          `name:"log-level" help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"ANNOTCONV_LOG_LEVEL"`
	LogFormat string          `name:"log-format" help:"Log format" default:"text" enum:"text,json" env:"ANNOTCONV_LOG_FORMAT"`

	Convert   ConvertCmd   `cmd:"" help:"Convert one document between formats"`
	Validate  ValidateCmd  `cmd:"" help:"Check documents for non-canonical spans and chain problems"`
	Roundtrip RoundtripCmd `cmd:"" help:"Check that writing a document is stable under re-reading"`
	Batch     BatchCmd     `cmd:"" help:"Convert every document of a directory or archive"`
	Ledger    LedgerGroup  `cmd:"" help:"Inspect the batch conversion ledger"`
	Formats   FormatsCmd   `cmd:"" help:"List registered formats"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// InputFlags are shared by commands that read a single document.
type InputFlags struct {
	From       string `help:"Source format (detected from the file extension if empty)"`
	Text       string `help:"Document text file (defaults to <input>.txt when present)" type:"path"`
	Encoding   string `help:"Character encoding of the text file" default:"utf-8"`
	Tokens     string `help:"CoNLL-U file supplying tokens and sentences" type:"existingfile"`
	DocumentID string `name:"document-id" help:"Override the document id"`
}

// ConversionFlags control repair and writing.
type ConversionFlags struct {
	Repair         bool `help:"Consolidate non-canonical spans and merge chains sharing a mention"`
	Clean          bool `help:"Delete chains with fewer than two mentions"`
	NoAppositions  bool `name:"no-appositions" help:"Do not write appositions as chains"`
	KeepDegenerate bool `name:"keep-degenerate" help:"Write chains with a single mention"`
}

func (f ConversionFlags) options() batch.Options {
	w := plugins.DefaultWriteOptions()
	w.IncludeAppositions = !f.NoAppositions
	w.KeepDegenerate = f.KeepDegenerate
	return batch.Options{Repair: f.Repair, Clean: f.Clean, Write: w}
}

// ConvertCmd converts one document.
type ConvertCmd struct {
	InputFlags      `embed:""`
	ConversionFlags `embed:""`

	To    string `required:"" help:"Target format"`
	Out   string `short:"o" help:"Output file (stdout if empty)" type:"path"`
	Input string `arg:"" help:"Input document" type:"existingfile"`
}

func (c *ConvertCmd) Run() error {
	job, err := c.InputFlags.job(c.Input, c.To)
	if err != nil {
		return err
	}
	conv, err := batch.Convert(job, c.ConversionFlags.options())
	if err != nil {
		return fmt.Errorf("%s: %w", c.Input, err)
	}

	if c.Out == "" {
		if _, err := stdout.Write(conv.Output); err != nil {
			return err
		}
	} else {
		if err := validation.ValidatePath(c.Out); err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := fileutil.WriteFile(c.Out, conv.Output); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s (%s -> %s)\n", c.Out, job.From, job.To)
	}
	printRepairs(stderr, conv)
	printLoss(stderr, conv.Loss)
	return nil
}

// ValidateCmd checks many documents and reports every issue found.
type ValidateCmd struct {
	InputFlags `embed:""`

	Inputs []string `arg:"" help:"Input documents" type:"existingfile"`
}

func (c *ValidateCmd) Run() error {
	failed := 0
	for _, input := range c.Inputs {
		if !c.validate(input) {
			failed++
		}
	}
	fmt.Fprintf(stdout, "\n%d of %d document(s) valid\n", len(c.Inputs)-failed, len(c.Inputs))
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed validation", failed)
	}
	return nil
}

func (c *ValidateCmd) validate(input string) bool {
	job, err := c.InputFlags.job(input, "")
	if err != nil {
		fmt.Fprintf(stdout, "FAIL %s: %v\n", input, err)
		return false
	}
	doc, err := batch.Load(job, batch.Options{Lenient: true})
	if err != nil {
		fmt.Fprintf(stdout, "FAIL %s: %v\n", input, err)
		return false
	}

	ok := true
	for _, verr := range ir.ValidateDocument(doc) {
		fmt.Fprintf(stdout, "FAIL %s: %v\n", input, verr)
		ok = false
	}
	if err := ir.ValidateSpans(doc); err != nil {
		fmt.Fprintf(stdout, "FAIL %s: %v\n", input, err)
		ok = false
	}
	for _, chain := range chains.Degenerate(doc) {
		fmt.Fprintf(stdout, "WARN %s: chain %d has fewer than two mentions\n", input, chain.ID)
	}
	if ok {
		counts := doc.CountByType()
		fmt.Fprintf(stdout, "ok   %s (%d annotations, %d chains, %d mentions)\n",
			input, doc.Len(), counts[ir.TypeIdentityChain], counts[ir.TypeNounPhrase])
	}
	return ok
}

// RoundtripCmd writes a document, re-reads the output and writes it again.
type RoundtripCmd struct {
	InputFlags      `embed:""`
	ConversionFlags `embed:""`

	Via   string `help:"Format to round-trip through" default:"conll-coref"`
	Input string `arg:"" help:"Input document" type:"existingfile"`
}

func (c *RoundtripCmd) Run() error {
	job, err := c.InputFlags.job(c.Input, c.Via)
	if err != nil {
		return err
	}
	opts := c.ConversionFlags.options()

	first, err := batch.Convert(job, opts)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	second, err := batch.Convert(batch.Job{
		Name: c.Input,
		From: c.Via,
		To:   c.Via,
		Data: first.Output,
		Text: first.Document.Text,
	}, opts)
	if err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}

	h1, h2 := ir.Blake3Hash(first.Output), ir.Blake3Hash(second.Output)
	fmt.Fprintf(stdout, "source fingerprint:  %s\n", ir.Fingerprint(first.Document))
	fmt.Fprintf(stdout, "reread fingerprint:  %s\n", ir.Fingerprint(second.Document))
	fmt.Fprintf(stdout, "write:   %s\n", h1)
	fmt.Fprintf(stdout, "rewrite: %s\n", h2)
	printLoss(stderr, first.Loss)
	if h1 != h2 {
		return fmt.Errorf("round trip through %s is not stable", c.Via)
	}
	fmt.Fprintf(stdout, "Round trip through %s is stable\n", c.Via)
	return nil
}

// BatchCmd converts a corpus directory or archive.
type BatchCmd struct {
	ConversionFlags `embed:""`

	From     string        `required:"" help:"Source format"`
	To       string        `required:"" help:"Target format"`
	Out      string        `required:"" help:"Output directory" type:"path"`
	Encoding string        `help:"Character encoding of the .txt files" default:"utf-8"`
	Ledger   string        `help:"SQLite ledger recording the run" type:"path"`
	Workers  int           `help:"Concurrent documents (0 = number of CPUs)" default:"0" env:"ANNOTCONV_WORKERS"`
	Timeout  time.Duration `help:"Per-document deadline (0 = none)" default:"0s" env:"ANNOTCONV_TIMEOUT"`
	Input    string        `arg:"" help:"Corpus directory or .tar.xz/.tar.gz archive" type:"existingpath"`
}

func (c *BatchCmd) Run() error {
	target, err := plugins.GetCodec(c.To)
	if err != nil {
		return err
	}
	entries, err := archive.ReadCorpus(c.Input)
	if err != nil {
		return err
	}
	jobs, err := pairJobs(entries, c.From, c.To, c.Encoding)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return errors.NewNotFound(c.From+" documents in", c.Input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := c.ConversionFlags.options()
	opts.Workers = c.Workers
	opts.Timeout = c.Timeout
	opts.SourceDB = filepath.Base(c.Input)
	results := batch.Run(ctx, jobs, opts)

	ext := ".out"
	if len(target.Extensions) > 0 {
		ext = target.Extensions[0]
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for i := range results {
		res := &results[i]
		detail := ""
		if res.Status == batch.StatusCompleted {
			out, err := c.write(*res, ext)
			if err != nil {
				res.Status = batch.StatusFailed
				res.Err = err
			} else {
				detail = fmt.Sprintf("-> %s (%s)", out, res.Loss.LossClass)
			}
		}
		if res.Err != nil {
			detail = res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Status, res.Name, firstLine(detail))
	}
	tw.Flush()

	if c.Ledger != "" {
		ledger, err := store.Open(c.Ledger)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := ledger.RecordAll(context.Background(), results[0].RunID, results); err != nil {
			return err
		}
	}

	s := batch.Summarize(results)
	fmt.Fprintf(stdout, "\nRun %s: %d completed, %d failed, %d cancelled\n",
		results[0].RunID, s.Completed, s.Failed, s.Cancelled)
	if s.Failed+s.Cancelled > 0 {
		return fmt.Errorf("%d of %d document(s) not converted", s.Failed+s.Cancelled, len(results))
	}
	return nil
}

func (c *BatchCmd) write(res batch.Result, ext string) (string, error) {
	rel := strings.TrimSuffix(res.Name, path.Ext(trimXZ(res.Name))+xzSuffix(res.Name)) + ext
	clean, err := validation.SanitizePath(c.Out, filepath.FromSlash(rel))
	if err != nil {
		return "", err
	}
	out := filepath.Join(c.Out, clean)
	return out, fileutil.WriteFile(out, res.Output)
}

// LedgerGroup contains ledger queries.
type LedgerGroup struct {
	Runs LedgerRunsCmd `cmd:"" help:"List recorded runs"`
	Show LedgerShowCmd `cmd:"" help:"Show the results of one run"`
}

// LedgerRunsCmd lists runs.
type LedgerRunsCmd struct {
	DB string `name:"db" required:"" help:"Ledger database" type:"existingfile"`
}

func (c *LedgerRunsCmd) Run() error {
	ledger, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Runs(context.Background())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tDOCUMENTS\tCOMPLETED\tFAILED\tCANCELLED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", r.ID, r.CreatedAt.Format(time.RFC3339),
			r.Documents, r.Completed, r.Failed, r.Cancelled)
	}
	return tw.Flush()
}

// LedgerShowCmd prints the results of one run.
type LedgerShowCmd struct {
	DB    string `name:"db" required:"" help:"Ledger database" type:"existingfile"`
	RunID string `arg:"" name:"run-id" help:"Run id"`
}

func (c *LedgerShowCmd) Run() error {
	ledger, err := store.Open(c.DB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := ledger.Results(context.Background(), c.RunID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tNAME\tDOCUMENT\tLOSS\tCHAINS\tMENTIONS\tFINGERPRINT")
	for _, e := range entries {
		fp := e.Fingerprint
		if len(fp) > 16 {
			fp = fp[:16]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", e.Status, e.Name, e.DocumentID,
			e.LossClass, e.Chains, e.Mentions, fp)
		if e.Error != "" {
			fmt.Fprintf(tw, "\t\t%s\n", firstLine(e.Error))
		}
	}
	return tw.Flush()
}

// FormatsCmd lists registered codecs.
type FormatsCmd struct{}

func (c *FormatsCmd) Run(ctx *kong.Context) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tMODE\tEXTENSIONS\tDESCRIPTION")
	for _, codec := range plugins.ListCodecs() {
		mode := ""
		if codec.CanRead() {
			mode += "r"
		}
		if codec.CanWrite() {
			mode += "w"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", codec.Name, mode,
			strings.Join(codec.Extensions, " "), codec.Description)
	}
	return tw.Flush()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "annotconv version %s\n", version)
	fmt.Fprintf(stdout, "  formats: %d\n", embedded.CodecCount())
	fmt.Fprintf(stdout, "  sqlite:  %s (%s)\n", info.Package, info.DriverType)
	return nil
}

// Helper functions

// job reads input and its companion files into a batch job.
func (f InputFlags) job(input, to string) (batch.Job, error) {
	from, err := resolveFormat(f.From, input)
	if err != nil {
		return batch.Job{}, err
	}
	data, err := fileutil.ReadFile(input)
	if err != nil {
		return batch.Job{}, fmt.Errorf("read %s: %w", input, err)
	}
	job := batch.Job{Name: input, From: from, To: to, Data: data, DocumentID: f.DocumentID}

	textPath := f.Text
	if textPath == "" {
		if sibling := siblingText(input); fileExists(sibling) {
			textPath = sibling
		}
	}
	if textPath != "" {
		if job.Text, err = fileutil.ReadText(textPath, f.Encoding); err != nil {
			return batch.Job{}, fmt.Errorf("read text %s: %w", textPath, err)
		}
	}
	if f.Tokens != "" {
		if job.Tokens, err = fileutil.ReadFile(f.Tokens); err != nil {
			return batch.Job{}, fmt.Errorf("read tokens %s: %w", f.Tokens, err)
		}
	}
	return job, nil
}

func resolveFormat(name, input string) (string, error) {
	if name != "" {
		codec, err := plugins.GetCodec(name)
		if err != nil {
			return "", err
		}
		return codec.Name, nil
	}
	codec, err := plugins.CodecForPath(input)
	if err != nil {
		return "", fmt.Errorf("cannot detect the format of %s, use --from: %w", input, err)
	}
	return codec.Name, nil
}

// pairJobs turns corpus entries into jobs: every entry with an extension of
// the source format becomes a job, and entries named <stem>.txt and
// <stem>.conllu beside it supply its text and tokens.
func pairJobs(entries []archive.Entry, from, to, encoding string) ([]batch.Job, error) {
	source, err := plugins.GetCodec(from)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]byte, len(entries))
	for _, e := range entries {
		byName[e.Name] = e.Data
	}

	var jobs []batch.Job
	for _, e := range entries {
		name := trimXZ(e.Name)
		ext := path.Ext(name)
		if !hasExtension(source, ext) {
			continue
		}
		data := e.Data
		if name != e.Name {
			if data, err = fileutil.Decompress(data); err != nil {
				return nil, fmt.Errorf("%s: %w", e.Name, err)
			}
		}
		job := batch.Job{Name: e.Name, From: source.Name, To: to, Data: data}

		stem := strings.TrimSuffix(name, ext)
		if text, ok := byName[stem+".txt"]; ok {
			if job.Text, err = fileutil.DecodeText(text, encoding); err != nil {
				return nil, fmt.Errorf("%s.txt: %w", stem, err)
			}
		}
		if tokens, ok := byName[stem+".conllu"]; ok && ext != ".conllu" {
			job.Tokens = tokens
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func hasExtension(c *plugins.Codec, ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func trimXZ(name string) string {
	return strings.TrimSuffix(name, xzSuffix(name))
}

func xzSuffix(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".xz") {
		return name[len(name)-3:]
	}
	return ""
}

func siblingText(input string) string {
	name := trimXZ(input)
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func printRepairs(w io.Writer, conv *batch.Conversion) {
	if conv.SpanRepairs > 0 {
		fmt.Fprintf(w, "Repaired spans of %d annotation(s)\n", conv.SpanRepairs)
	}
	if conv.ChainMerges > 0 {
		fmt.Fprintf(w, "Merged %d chain(s) sharing a mention\n", conv.ChainMerges)
	}
	if len(conv.Removed) > 0 {
		fmt.Fprintf(w, "Removed %d chain(s) with a single mention\n", len(conv.Removed))
	}
}

func printLoss(w io.Writer, report *ir.LossReport) {
	if report == nil {
		return
	}
	fmt.Fprintf(w, "Loss class: %s (%s)\n", report.LossClass, report.LossClass.Describe())
	for _, lost := range report.LostElements {
		fmt.Fprintf(w, "  lost %s %s x%d: %s\n", lost.Path, lost.ElementType, lost.Count, lost.Reason)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

// configJSON loads a JSON configuration file. kong.JSON looks flags up by
// snake or camel case only, so hyphenated keys are rewritten to snake case
// at every level before delegating.
func configJSON(r io.Reader) (kong.Resolver, error) {
	var values map[string]any
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	data, err := json.Marshal(snakeKeys(values))
	if err != nil {
		return nil, err
	}
	return kong.JSON(bytes.NewReader(data))
}

func snakeKeys(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if nested, ok := v.(map[string]any); ok {
			v = snakeKeys(nested)
		}
		out[strings.ReplaceAll(k, "-", "_")] = v
	}
	return out
}

func initLogging() error {
	level, err := logging.ParseLevel(CLI.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(CLI.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLoggerTo(stderr, level, format)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("annotconv"),
		kong.Description("Coreference annotation converter (CoNLL-Coref, JSON, CoNLL-U)"),
		kong.UsageOnError(),
		kong.Configuration(configJSON),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(initLogging())
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
