// Package remote talks to the coordinator that owns jobs, their source
// videos and the finished results.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/storage"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

// ArtifactStore moves files to and from object storage. *storage.Storage satisfies it.
type ArtifactStore interface {
	UploadFile(ctx context.Context, objectName, filePath string) (storage.ObjectRef, error)
	DownloadFile(ctx context.Context, ref storage.ObjectRef, filePath string) error
	GetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// resultURLExpiry is how long the download link sent with a result stays valid
const resultURLExpiry = 7 * 24 * time.Hour

// Client is the remote job source and sink
type Client struct {
	baseURL         *url.URL
	token           string
	httpClient      *http.Client
	timeout         time.Duration
	transferTimeout time.Duration
	maxRetries      int
	retryDelay      time.Duration
	artifacts       ArtifactStore
	logger          *logging.Logger
}

// NewClient creates a client for cfg.BaseURL. artifacts may be nil, in
// which case s3:// sources are rejected and results are posted inline.
func NewClient(cfg config.RemoteConfig, artifacts ArtifactStore, logger *logging.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	// timeout stops at the response headers so long transfers are bounded
	// by transferTimeout and the caller's context instead
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		baseURL:         base,
		token:           cfg.Token,
		httpClient:      &http.Client{Transport: transport},
		timeout:         timeout,
		transferTimeout: cfg.TransferTimeout,
		maxRetries:      maxRetries,
		retryDelay:      cfg.RetryDelay,
		artifacts:       artifacts,
		logger:          logger.WithComponent("remote"),
	}, nil
}

// endpoint appends elem to the base path, each escaped as a single segment
func (c *Client) endpoint(elem ...string) string {
	u := *c.baseURL
	raw := strings.TrimRight(u.EscapedPath(), "/")
	for _, e := range elem {
		raw += "/" + url.PathEscape(e)
	}
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path = p
		u.RawPath = raw
	}
	return u.String()
}

type jobList struct {
	Jobs []models.Job `json:"jobs"`
}

// ListReadyJobs returns the jobs marked ready, in the order the coordinator lists them
func (c *Client) ListReadyJobs(ctx context.Context) ([]models.Job, error) {
	target := c.endpoint("jobs") + "?status=" + url.QueryEscape(string(models.JobStatusReady))

	var body []byte
	err := c.do(ctx, "list_jobs", target, c.timeout, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, func(resp *http.Response) (err error) {
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}

	jobs, err := decodeJobs(body)
	if err != nil {
		return nil, &RemoteIOError{Op: "list_jobs", URL: target, Err: err}
	}

	ready := make([]models.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status != "" && job.Status != models.JobStatusReady {
			continue
		}
		if job.ID == "" {
			c.logger.Warn("Skipping listed job without id")
			continue
		}
		job.Status = models.JobStatusReady
		ready = append(ready, job)
	}
	return ready, nil
}

// decodeJobs accepts either {"jobs":[...]} or a bare array
func decodeJobs(body []byte) ([]models.Job, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var jobs []models.Job
		if err := json.Unmarshal(trimmed, &jobs); err != nil {
			return nil, fmt.Errorf("decode job list: %w", err)
		}
		return jobs, nil
	}

	var list jobList
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}
	return list.Jobs, nil
}

// GetJob fetches a single job by id
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	target := c.endpoint("jobs", id)

	var job models.Job
	err := c.do(ctx, "get_job", target, c.timeout, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&job)
	})
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

// DownloadSource stores the job's source video under dir and returns its path
func (c *Client) DownloadSource(ctx context.Context, job models.Job, dir string) (string, error) {
	if job.SourceURL == "" {
		return "", &RemoteIOError{Op: "download_source", Err: errors.New("job has no source")}
	}

	if storage.IsObjectRef(job.SourceURL) {
		return c.downloadObject(ctx, job.SourceURL, dir)
	}

	target, err := c.resolve(job.SourceURL)
	if err != nil {
		return "", &RemoteIOError{Op: "download_source", URL: job.SourceURL, Err: err}
	}

	dest := filepath.Join(dir, "source"+sourceExt(target))
	err = c.do(ctx, "download_source", target, c.transferTimeout, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, func(resp *http.Response) error {
		return writeFile(dest, resp.Body)
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Client) downloadObject(ctx context.Context, ref, dir string) (string, error) {
	if c.artifacts == nil {
		return "", &RemoteIOError{Op: "download_source", URL: ref, Err: errors.New("object storage is not configured")}
	}

	obj, err := storage.ParseObjectRef(ref)
	if err != nil {
		return "", &RemoteIOError{Op: "download_source", URL: ref, Err: err}
	}

	ctx, cancel := withLimit(ctx, c.transferTimeout)
	defer cancel()

	dest := filepath.Join(dir, "source"+sourceExt(obj.Key))
	if err := c.artifacts.DownloadFile(ctx, obj, dest); err != nil {
		return "", &RemoteIOError{Op: "download_source", URL: ref, Err: err}
	}
	return dest, nil
}

// FetchScript downloads and parses the job's script document
func (c *Client) FetchScript(ctx context.Context, job models.Job) (*models.Script, error) {
	target := c.endpoint("jobs", job.ID, "script")
	if job.ScriptURL != "" {
		resolved, err := c.resolve(job.ScriptURL)
		if err != nil {
			return nil, &RemoteIOError{Op: "fetch_script", URL: job.ScriptURL, Err: err}
		}
		target = resolved
	}

	var script *models.Script
	err := c.do(ctx, "fetch_script", target, c.timeout, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, func(resp *http.Response) error {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		script, err = models.ParseScript(data, resp.Header.Get("Content-Type"))
		return err
	})
	if err != nil {
		return nil, err
	}
	return script, nil
}

type resultNotice struct {
	Name      string `json:"name"`
	ObjectKey string `json:"object_key,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	URL       string `json:"url,omitempty"`
}

// UploadResult delivers the finished video for job under name
func (c *Client) UploadResult(ctx context.Context, job models.Job, filePath, name string) error {
	target := c.endpoint("jobs", job.ID, "result")
	if name == "" {
		name = filepath.Base(filePath)
	}

	if c.artifacts != nil {
		uploadCtx, cancel := withLimit(ctx, c.transferTimeout)
		ref, err := c.artifacts.UploadFile(uploadCtx, path.Join("results", url.PathEscape(job.ID), name), filePath)
		cancel()
		if err != nil {
			return &RemoteIOError{Op: "upload_result", URL: target, Err: err}
		}

		notice := resultNotice{Name: name, ObjectKey: ref.Key, Bucket: ref.Bucket}
		if link, err := c.artifacts.GetURL(ctx, ref.Key, resultURLExpiry); err != nil {
			c.logger.WithJobID(job.ID).WithError(err).Warn("Failed to sign result URL")
		} else {
			notice.URL = link
		}
		return c.postJSON(ctx, "upload_result", target, notice)
	}

	if _, err := os.Stat(filePath); err != nil {
		return &RemoteIOError{Op: "upload_result", URL: target, Err: err}
	}

	return c.do(ctx, "upload_result", target, c.transferTimeout, func(ctx context.Context) (*http.Request, error) {
		body, contentType := multipartFile(filePath, name)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
		if err != nil {
			body.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}, drain)
}

type statusUpdate struct {
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// ReportStatus tells the coordinator the job's lifecycle status
func (c *Client) ReportStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid job status %q", status)
	}
	return c.postJSON(ctx, "report_status", c.endpoint("jobs", jobID, "status"), statusUpdate{Status: status, Message: message})
}

func (c *Client) postJSON(ctx context.Context, op, target string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", op, err)
	}

	return c.do(ctx, op, target, c.timeout, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, drain)
}

// do sends the request built by build, retrying temporary failures with a
// doubling delay, and hands successful responses to handle. limit bounds
// each attempt including its body; zero means only ctx applies.
func (c *Client) do(ctx context.Context, op, target string, limit time.Duration, build func(context.Context) (*http.Request, error), handle func(*http.Response) error) error {
	start := time.Now()
	delay := c.retryDelay

	var lastErr *RemoteIOError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = &RemoteIOError{Op: op, URL: target, Err: ctx.Err()}
				metrics.RecordRemoteOperation(op, time.Since(start).Seconds(), lastErr)
				return lastErr
			case <-timer.C:
			}
			delay *= 2
		}

		attemptStart := time.Now()
		lastErr = c.attempt(ctx, op, target, limit, build, handle)
		status := 0
		if lastErr != nil {
			status = lastErr.StatusCode
		}
		c.logger.LogRemoteOperation(op, target, status, attempt+1, time.Since(attemptStart), errOrNil(lastErr))

		if lastErr == nil || !lastErr.Temporary() {
			break
		}
	}

	err := errOrNil(lastErr)
	metrics.RecordRemoteOperation(op, time.Since(start).Seconds(), err)
	return err
}

func (c *Client) attempt(ctx context.Context, op, target string, limit time.Duration, build func(context.Context) (*http.Request, error), handle func(*http.Response) error) *RemoteIOError {
	attemptCtx, cancel := withLimit(ctx, limit)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return &RemoteIOError{Op: op, URL: target, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteIOError{Op: op, URL: target, Err: attemptErr(ctx, attemptCtx, limit, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RemoteIOError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if err := handle(resp); err != nil {
		if expired(ctx, attemptCtx) {
			// an attempt that ran out of time is retried like a lost connection
			return &RemoteIOError{Op: op, URL: target, Err: attemptErr(ctx, attemptCtx, limit, err)}
		}
		// a body that cannot be read or decoded is not retried
		return &RemoteIOError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func withLimit(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, limit)
}

// expired reports whether the attempt hit its own deadline while ctx is still live
func expired(ctx, attemptCtx context.Context) bool {
	return ctx.Err() == nil && attemptCtx.Err() != nil
}

// attemptErr replaces an attempt deadline with a plain error so the
// attempt counts as temporary; the caller's own deadline is kept as is.
func attemptErr(ctx, attemptCtx context.Context, limit time.Duration, err error) error {
	if expired(ctx, attemptCtx) {
		return fmt.Errorf("no complete response within %s: %v", limit, err)
	}
	return err
}

// errOrNil avoids returning a typed nil inside the error interface
func errOrNil(err *RemoteIOError) error {
	if err == nil {
		return nil
	}
	return err
}

// resolve turns a ref relative to the base URL into an absolute URL
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if strings.HasPrefix(ref, "/") {
		base := *c.baseURL
		base.Path = ""
		return base.ResolveReference(u).String(), nil
	}
	return c.baseURL.String() + "/" + ref, nil
}

func sourceExt(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 6 {
		return ".mp4"
	}
	return ext
}

func writeFile(dest string, r io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

func drain(resp *http.Response) error {
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}

// multipartFile streams filePath as the "file" form field
func multipartFile(filePath, name string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			f, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := mw.WriteField("name", name); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}
