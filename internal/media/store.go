package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"shotdeck/internal/config"
	"shotdeck/internal/fileutil"
	"shotdeck/internal/logging"
	"shotdeck/internal/services"
)

const (
	component          = "media"
	defaultDownloadTTL = 2 * time.Minute
	maxDownloadBytes   = 2 << 30
	maxInlineBytes     = 20 << 20
)

// Object is a file stored under the media directory.
type Object struct {
	Path        string
	Location    string
	ContentType string
	Size        int64
	SHA256      string
}

// Store saves media files under a root directory.
type Store struct {
	root   string
	prefix string
	client *http.Client
	logger *slog.Logger
}

// NewStore builds a Store rooted at the configured media directory.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	timeout := time.Duration(cfg.Media.DownloadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultDownloadTTL
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(cfg.Media.PublicPrefix), "/")
	if prefix == "/" {
		prefix = "/media"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		root:   cfg.Paths.MediaDir,
		prefix: prefix,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(logging.String(logging.FieldComponent, component)),
	}
}

// Root returns the media directory.
func (s *Store) Root() string {
	return s.root
}

// Prefix returns the public URL prefix of stored files.
func (s *Store) Prefix() string {
	return s.prefix
}

// IsLocal reports whether location points into the store.
func (s *Store) IsLocal(location string) bool {
	_, ok := s.Resolve(location)
	return ok
}

// Resolve maps a public location to its path on disk.
func (s *Store) Resolve(location string) (string, bool) {
	if !strings.HasPrefix(location, s.prefix+"/") {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(location, s.prefix+"/"))
	if rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), true
}

// Mirror downloads sourceURL into the project's directory.
func (s *Store) Mirror(ctx context.Context, projectID, sourceURL string) (Object, error) {
	const op = "mirror"
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Object{}, services.Wrap(services.ErrValidation, component, op, "source must be an http(s) url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return Object{}, services.Wrap(services.ErrValidation, component, op, "build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, component, op, "download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrExternal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		return Object{}, services.Wrap(marker, component, op, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	name := uuid.NewString() + extensionFor(contentType, parsed.Path)
	obj, err := s.write(projectID, name, io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return Object{}, services.Wrap(services.ErrTransient, component, op, "write file", err)
	}
	obj.ContentType = contentType
	s.logger.Debug("mirrored media",
		logging.String(logging.FieldProjectID, projectID),
		logging.String("source", sourceURL),
		logging.String("location", obj.Location),
		logging.Int64("bytes", obj.Size),
	)
	return obj, nil
}

// Import copies a local file into the project's directory.
func (s *Store) Import(projectID, src string) (Object, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(src))
	dst := filepath.Join(s.root, projectID, name)
	result, err := fileutil.CopyFileVerified(src, dst)
	if err != nil {
		return Object{}, services.Wrap(services.ErrValidation, component, "import", "copy "+src, err)
	}
	return Object{
		Path:        dst,
		Location:    s.location(projectID, name),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Size:        result.Size,
		SHA256:      result.SHA256,
	}, nil
}

// Remove deletes the file behind a local location. Remote locations and
// files that are already gone are ignored.
func (s *Store) Remove(location string) error {
	target, ok := s.Resolve(location)
	if !ok {
		return nil
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrTransient, component, "remove", location, err)
	}
	return nil
}

// RemoveProject deletes a project's media directory.
func (s *Store) RemoveProject(projectID string) error {
	if strings.TrimSpace(projectID) == "" || strings.ContainsAny(projectID, `/\`) {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.root, projectID)); err != nil {
		return services.Wrap(services.ErrTransient, component, "remove project", projectID, err)
	}
	return nil
}

// DataURI inlines a local file as a base64 data URI so providers that cannot
// reach this host can still read it. Files over 20 MiB are rejected.
func (s *Store) DataURI(location string) (string, error) {
	target, ok := s.Resolve(location)
	if !ok {
		return "", services.Wrap(services.ErrValidation, component, "inline", location+" is not a local media file", nil)
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, component, "inline", location, err)
	}
	if info.Size() > maxInlineBytes {
		return "", services.Wrap(services.ErrValidation, component, "inline",
			fmt.Sprintf("%s is %d bytes; the limit for inline upload is %d", location, info.Size(), maxInlineBytes), nil)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, component, "inline", location, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(target))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if semi := strings.IndexByte(contentType, ';'); semi >= 0 {
		contentType = strings.TrimSpace(contentType[:semi])
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *Store) write(projectID, name string, r io.Reader) (Object, error) {
	dst := filepath.Join(s.root, projectID, name)
	result, err := fileutil.WriteAtomic(dst, r)
	if err != nil {
		return Object{}, err
	}
	return Object{Path: dst, Location: s.location(projectID, name), Size: result.Size, SHA256: result.SHA256}, nil
}

func (s *Store) location(projectID, name string) string {
	return s.prefix + "/" + projectID + "/" + name
}

func extensionFor(contentType, urlPath string) string {
	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
