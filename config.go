package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	defaultAlphabet = "ABCÇDEFGĞHIİJKLMNOÖPRSŞTUÜVYZ"
	defaultLocale   = "tr"
)

var defaultCategories = []string{"isim", "şehir", "hayvan", "bitki", "eşya"}

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	answerTime  time.Duration
	disputeTime time.Duration
	voteTime    time.Duration
	cooldown    time.Duration
	rounds      int
	maxRounds   int
	categories  []string
	alphabet    string
	locale      string
	noDispute   bool

	lang language.Tag
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	for name, d := range map[string]time.Duration{
		"answer-time":  c.answerTime,
		"dispute-time": c.disputeTime,
		"vote-time":    c.voteTime,
		"cooldown":     c.cooldown,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid --%s (must be positive): %s", name, d)
		}
	}

	if c.maxRounds < 1 {
		return fmt.Errorf("invalid --max-rounds (must be at least 1): %d", c.maxRounds)
	}
	if c.rounds < 1 || c.rounds > c.maxRounds {
		return fmt.Errorf("invalid --rounds (must be between 1-%d inclusive): %d", c.maxRounds, c.rounds)
	}
	if strings.TrimSpace(c.alphabet) == "" {
		return errors.New("--alphabet must not be empty")
	}
	if len(c.categories) == 0 {
		return errors.New("at least one --categories entry is required")
	}

	tag, err := language.Parse(c.locale)
	if err != nil {
		return fmt.Errorf("invalid --locale %q: %w", c.locale, err)
	}
	c.lang = tag

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// rules derives the per-room game settings from the command line.
func (c *Config) rules() Rules {
	return Rules{
		AnswerTime:  c.answerTime,
		DisputeTime: c.disputeTime,
		VoteTime:    c.voteTime,
		Cooldown:    c.cooldown,
		Rounds:      c.rounds,
		MaxRounds:   c.maxRounds,
		Categories:  c.categories,
		Alphabet:    []rune(strings.TrimSpace(c.alphabet)),
		Disputes:    !c.noDispute,
		Folder:      newFolder(c.lang),
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LETTERBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "letterbox",
		Short:         "A room-based server for the timed letter-and-categories party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: LETTERBOX_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: LETTERBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: LETTERBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: LETTERBOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed, 0 to disable (env: LETTERBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: LETTERBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: LETTERBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: LETTERBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: LETTERBOX_VERSION)")

	fs.DurationVar(&cfg.answerTime, "answer-time", 300*time.Second, "time players have to submit answers (env: LETTERBOX_ANSWER_TIME)")
	fs.DurationVar(&cfg.disputeTime, "dispute-time", 30*time.Second, "length of the dispute window (env: LETTERBOX_DISPUTE_TIME)")
	fs.DurationVar(&cfg.voteTime, "vote-time", 60*time.Second, "time the referee has to decide disputed answers (env: LETTERBOX_VOTE_TIME)")
	fs.DurationVar(&cfg.cooldown, "cooldown", 10*time.Second, "pause between rounds for result display (env: LETTERBOX_COOLDOWN)")
	fs.IntVar(&cfg.rounds, "rounds", 5, "rounds per game when the host does not choose (env: LETTERBOX_ROUNDS)")
	fs.IntVar(&cfg.maxRounds, "max-rounds", 20, "upper bound on rounds a host may request (env: LETTERBOX_MAX_ROUNDS)")
	fs.StringSliceVar(&cfg.categories, "categories", defaultCategories, "categories used when the host does not choose (env: LETTERBOX_CATEGORIES)")
	fs.StringVar(&cfg.alphabet, "alphabet", defaultAlphabet, "letters a round may draw from (env: LETTERBOX_ALPHABET)")
	fs.StringVar(&cfg.locale, "locale", defaultLocale, "BCP 47 tag used for case folding (env: LETTERBOX_LOCALE)")
	fs.BoolVar(&cfg.noDispute, "no-dispute", false, "skip the dispute window and have the referee rule on every answer (env: LETTERBOX_NO_DISPUTE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("letterbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
