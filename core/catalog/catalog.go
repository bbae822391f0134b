package catalog

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"basemusic/core/audio"
	"basemusic/logger"
	"basemusic/metrics"
	"basemusic/model"
)

// Group is one of the fixed collections tracks are sorted into.
type Group struct {
	ID    string
	Name  string
	Match string // lower-case filename substring
}

// Groups in classification order. A file goes to the first group it matches.
var Groups = []Group{
	{ID: "shivcharitra", Name: "Shivcharitra by Ninad Bedekar Sir", Match: "shivcharitra"},
	{ID: "panipat", Name: "Panipat by Ninad Bedekar Sir", Match: "panipat"},
}

// Options control discovery.
type Options struct {
	Files        []string
	BaseURL      string // joined with the escaped file name, e.g. "/audio"
	Artist       string
	AlbumArt     string
	ProbeTimeout time.Duration
	// PreferTags uses embedded title/artist tags over the file name.
	PreferTags bool
	// Concurrency bounds parallel probes; 0 means one per file.
	Concurrency int
}

// Result is the outcome of one discovery run.
type Result struct {
	Tracks    []model.Track    // every classified track, in file order
	Playlists []model.Playlist // one per non-empty group
}

// Catalog discovers the fixed set of audio files.
type Catalog struct {
	prober audio.Prober
	opts   Options
	clock  clock.Clock
}

func New(prober audio.Prober, opts Options, clk clock.Clock) *Catalog {
	if clk == nil {
		clk = clock.New()
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	return &Catalog{prober: prober, opts: opts, clock: clk}
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// TrackID is "track-<n>-<file name with non-alphanumerics as dashes>", n
// counting from 1.
func TrackID(index int, filename string) string {
	return fmt.Sprintf("track-%d-%s", index+1, nonAlnum.ReplaceAllString(filename, "-"))
}

// TitleFromFile drops the .mp3 extension and the "by <artist>" credit.
func TitleFromFile(filename, artist string) string {
	title := strings.Replace(filename, ".mp3", "", 1)
	if artist != "" {
		title = strings.ReplaceAll(title, "by "+artist, "")
	}
	return strings.Join(strings.Fields(title), " ")
}

// Classify returns the group filename belongs to.
func Classify(filename string) (Group, bool) {
	lower := strings.ToLower(filename)
	return lo.Find(Groups, func(g Group) bool { return strings.Contains(lower, g.Match) })
}

// URLFor is where the player fetches filename from.
func (c *Catalog) URLFor(filename string) string {
	return c.opts.BaseURL + "/" + url.PathEscape(filename)
}

// Discover probes every configured file and groups the results. Probes run
// concurrently, each bounded by the probe timeout; a failed probe yields
// duration 0. Files that match no group are skipped.
func (c *Catalog) Discover(ctx context.Context) (Result, error) {
	files := c.opts.Files
	infos := make([]audio.Info, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}
	for i, name := range files {
		g.Go(func() error {
			infos[i] = c.probe(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := c.clock.Now().UnixMilli()
	var res Result
	grouped := make(map[string][]model.Track)
	for i, name := range files {
		group, ok := Classify(name)
		if !ok {
			logger.Debug("audio file matches no group", logger.String("file", name))
			continue
		}
		tr := c.track(i, name, infos[i])
		res.Tracks = append(res.Tracks, tr)
		grouped[group.ID] = append(grouped[group.ID], tr)
	}

	for _, group := range Groups {
		tracks := grouped[group.ID]
		if len(tracks) == 0 {
			continue
		}
		res.Playlists = append(res.Playlists, model.Playlist{
			ID:         group.ID,
			Name:       group.Name,
			Tracks:     tracks,
			CreatedAt:  now,
			CoverImage: c.opts.AlbumArt,
		})
	}

	logger.Info("catalog discovered",
		logger.Int("files", len(files)),
		logger.Int("tracks", len(res.Tracks)),
		logger.Int("playlists", len(res.Playlists)))
	return res, nil
}

func (c *Catalog) probe(ctx context.Context, name string) audio.Info {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	start := c.clock.Now()
	info, err := c.prober.Probe(ctx, name)
	metrics.ProbeDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		metrics.ProbeFailures.Inc()
		logger.Warn("audio probe failed, duration unknown",
			logger.String("file", name),
			logger.ErrorField(err))
		return audio.Info{}
	}
	return info
}

func (c *Catalog) track(index int, name string, info audio.Info) model.Track {
	tr := model.Track{
		ID:       TrackID(index, name),
		Title:    TitleFromFile(name, c.opts.Artist),
		Artist:   c.opts.Artist,
		Duration: info.Duration,
		URL:      c.URLFor(name),
		AlbumArt: c.opts.AlbumArt,
	}
	if c.opts.PreferTags {
		if info.Title != "" {
			tr.Title = info.Title
		}
		if info.Artist != "" {
			tr.Artist = info.Artist
		}
	}
	if tr.Duration < 0 || tr.Duration != tr.Duration {
		tr.Duration = 0
	}
	return tr
}

// NewTrackFromURL describes an ad hoc track whose length is learned on load.
func NewTrackFromURL(rawURL, title, artist, albumArt string) model.Track {
	if artist == "" {
		artist = "Unknown Artist"
	}
	return model.Track{
		ID:       "track-" + uuid.NewString(),
		Title:    title,
		Artist:   artist,
		URL:      rawURL,
		AlbumArt: albumArt,
	}
}

// Search keeps tracks whose title or artist contains query, ignoring case.
// A blank query returns all tracks.
func Search(tracks []model.Track, query string) []model.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]model.Track{}, tracks...)
	}
	return lo.Filter(tracks, func(t model.Track, _ int) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Artist), q)
	})
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds != seconds || seconds < 0 {
		return "0:00"
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
