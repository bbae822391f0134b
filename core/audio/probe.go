package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/minio/minio-go/v7"
)

// ErrUnknownLength is returned when a stream decodes but its length cannot be determined.
var ErrUnknownLength = errors.New("audio length unknown")

var errDecode = errors.New("decode mp3")

// Info is what a probe learns about an audio resource.
type Info struct {
	Duration float64 // seconds
	Title    string  // from embedded tags, may be empty
	Artist   string
}

// Prober reads metadata of a named audio resource.
type Prober interface {
	Probe(ctx context.Context, name string) (Info, error)
}

// source is a seekable audio stream.
type source interface {
	io.ReadSeekCloser
}

// readInfo decodes the MP3 stream to measure its length and reads optional
// tags. The source is always closed.
func readInfo(src source) (Info, error) {
	var info Info

	if md, err := tag.ReadFrom(src); err == nil {
		info.Title = md.Title()
		info.Artist = md.Artist()
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		src.Close()
		return Info{}, err
	}

	// mp3.Decode takes ownership of src and closes it with the streamer.
	streamer, format, err := mp3.Decode(src)
	if err != nil {
		src.Close()
		return Info{}, fmt.Errorf("%w: %v", errDecode, err)
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return info, ErrUnknownLength
	}
	info.Duration = format.SampleRate.D(n).Seconds()
	return info, nil
}

// probeWithContext runs open+readInfo and gives up when ctx is done. The
// abandoned goroutine finishes on its own and its result is dropped.
func probeWithContext(ctx context.Context, open func() (source, error)) (Info, error) {
	type result struct {
		info Info
		err  error
	}
	done := make(chan result, 1)
	go func() {
		src, err := open()
		if err != nil {
			done <- result{err: err}
			return
		}
		info, err := readInfo(src)
		done <- result{info: info, err: err}
	}()

	select {
	case r := <-done:
		return r.info, r.err
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// FileProber probes files below a local directory.
type FileProber struct {
	Dir string
}

func (p FileProber) Probe(ctx context.Context, name string) (Info, error) {
	path := filepath.Join(p.Dir, filepath.Clean("/"+name))
	return probeWithContext(ctx, func() (source, error) {
		return os.Open(path)
	})
}

// MinioProber probes objects stored under Prefix in a bucket.
type MinioProber struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

func (p MinioProber) Probe(ctx context.Context, name string) (Info, error) {
	object := name
	if p.Prefix != "" {
		object = p.Prefix + "/" + name
	}
	return probeWithContext(ctx, func() (source, error) {
		obj, err := p.Client.GetObject(ctx, p.Bucket, object, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		return obj, nil
	})
}

// maxRemoteSize bounds how much of a remote stream is read to measure it.
const maxRemoteSize = 128 << 20

// HTTPProber measures audio served from absolute http(s) URLs. A stream that
// downloads but cannot be measured reports ErrUnknownLength.
type HTTPProber struct {
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context, rawURL string) (Info, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	info, err := probeWithContext(ctx, func() (source, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
		if err != nil {
			return nil, err
		}
		return nopCloser{bytes.NewReader(data)}, nil
	})
	if errors.Is(err, errDecode) {
		return info, ErrUnknownLength
	}
	return info, err
}

// StatusError reports a non-2xx answer from a remote audio server.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
