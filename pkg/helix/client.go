// Package helix is a client for the Helix REST admin API (v2).
package helix

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloudbro-kube-ai/helix-console/pkg/config"
	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
)

const apiPrefix = "/admin/v2"

// Client talks to one helix-rest endpoint. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      bool
	maxRetries int
	maxBackoff time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a client from the helix section of the config.
func NewClient(cfg config.HelixConfig, timeout time.Duration, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid helix endpoint %q: %w", cfg.Endpoint, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid helix endpoint %q: scheme must be http or https", cfg.Endpoint)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	maxBackoff := time.Duration(cfg.MaxBackoff * float64(time.Second))
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	c := &Client{
		baseURL:    base.String(),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		retry:      cfg.RetryEnabled,
		maxRetries: cfg.MaxRetries,
		maxBackoff: maxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string {
	return c.baseURL
}

func (c *Client) newBackOff(ctx context.Context, method string) backoff.BackOff {
	// POST commands are not safe to replay blindly
	if !c.retry || c.maxRetries <= 0 || method == http.MethodPost {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = min(200*time.Millisecond, c.maxBackoff)
	eb.MaxInterval = c.maxBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)
}

// do sends one request, retrying transient failures, and decodes the JSON
// answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	target := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempt := 0
	op := func() error {
		attempt++
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.Debugf("[helix] %s %s attempt %d failed: %v", method, path, attempt, err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
			if serr.Temporary() {
				log.Debugf("[helix] %s %s attempt %d: %d", method, path, attempt, resp.StatusCode)
				return serr
			}
			return backoff.Permanent(serr)
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
		return nil
	}

	return backoff.Retry(op, c.newBackOff(ctx, method))
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

func esc(s string) string {
	return url.PathEscape(s)
}

// ListClusters returns all cluster names.
func (c *Client) ListClusters(ctx context.Context) ([]string, error) {
	var resp struct {
		Clusters []string `json:"clusters"`
	}
	if err := c.get(ctx, "/clusters", &resp); err != nil {
		return nil, err
	}
	return resp.Clusters, nil
}

// GetCluster returns one cluster or an error wrapping ErrNotFound.
func (c *Client) GetCluster(ctx context.Context, name string) (*Cluster, error) {
	if name == "" {
		return nil, fmt.Errorf("cluster name is empty: %w", ErrNotFound)
	}
	var cl Cluster
	if err := c.get(ctx, "/clusters/"+esc(name), &cl); err != nil {
		return nil, err
	}
	if cl.Name == "" {
		cl.Name = name
	}
	return &cl, nil
}

// CreateCluster creates an empty cluster.
func (c *Client) CreateCluster(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPut, "/clusters/"+esc(name), nil, nil, nil)
}

// DeleteCluster removes a cluster.
func (c *Client) DeleteCluster(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/clusters/"+esc(name), nil, nil, nil)
}

// ClusterCommand posts a command such as enable or enableMaintenanceMode.
func (c *Client) ClusterCommand(ctx context.Context, name string, cmd ClusterCommand) error {
	q := url.Values{"command": []string{string(cmd)}}
	return c.do(ctx, http.MethodPost, "/clusters/"+esc(name), q, nil, nil)
}

// GetClusterConfig returns the cluster config record.
func (c *Client) GetClusterConfig(ctx context.Context, name string) (*Record, error) {
	var rec Record
	if err := c.get(ctx, "/clusters/"+esc(name)+"/configs", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateClusterConfig merges the given fields into the cluster config.
func (c *Client) UpdateClusterConfig(ctx context.Context, name string, rec Record) error {
	if rec.ID == "" {
		rec.ID = name
	}
	q := url.Values{"command": []string{"update"}}
	return c.do(ctx, http.MethodPost, "/clusters/"+esc(name)+"/configs", q, rec, nil)
}

// ListResources returns the cluster's resources; Alive marks those with an external view.
func (c *Client) ListResources(ctx context.Context, cluster string) ([]ResourceSummary, error) {
	var resp struct {
		IdealStates   []string `json:"idealStates"`
		ExternalViews []string `json:"externalViews"`
	}
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/resources", &resp); err != nil {
		return nil, err
	}
	alive := make(map[string]bool, len(resp.ExternalViews))
	for _, name := range resp.ExternalViews {
		alive[name] = true
	}
	out := make([]ResourceSummary, 0, len(resp.IdealStates))
	for _, name := range resp.IdealStates {
		out = append(out, ResourceSummary{Name: name, Alive: alive[name]})
	}
	return out, nil
}

// GetResource returns one resource or an error wrapping ErrNotFound.
func (c *Client) GetResource(ctx context.Context, cluster, name string) (*Resource, error) {
	if cluster == "" || name == "" {
		return nil, fmt.Errorf("resource %q in cluster %q: %w", name, cluster, ErrNotFound)
	}
	var res Resource
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/resources/"+esc(name), &res); err != nil {
		return nil, err
	}
	if res.Name == "" {
		res.Name = name
	}
	res.Cluster = cluster
	return &res, nil
}

// ListInstances returns the cluster's participants with online/enabled flags.
func (c *Client) ListInstances(ctx context.Context, cluster string) ([]InstanceSummary, error) {
	var resp struct {
		Instances []string `json:"instances"`
		Online    []string `json:"online"`
		Disabled  []string `json:"disabled"`
	}
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/instances", &resp); err != nil {
		return nil, err
	}
	online := toSet(resp.Online)
	disabled := toSet(resp.Disabled)
	out := make([]InstanceSummary, 0, len(resp.Instances))
	for _, name := range resp.Instances {
		out = append(out, InstanceSummary{Name: name, Online: online[name], Enabled: !disabled[name]})
	}
	return out, nil
}

// GetInstance returns one participant.
func (c *Client) GetInstance(ctx context.Context, cluster, name string) (*Instance, error) {
	var inst Instance
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/instances/"+esc(name), &inst); err != nil {
		return nil, err
	}
	if inst.Name == "" {
		inst.Name = name
	}
	inst.Cluster = cluster
	return &inst, nil
}

// SetInstanceEnabled enables or disables a participant.
func (c *Client) SetInstanceEnabled(ctx context.Context, cluster, name string, enabled bool) error {
	cmd := "disable"
	if enabled {
		cmd = "enable"
	}
	q := url.Values{"command": []string{cmd}}
	return c.do(ctx, http.MethodPost, "/clusters/"+esc(cluster)+"/instances/"+esc(name), q, nil, nil)
}

// ListInstanceResources returns the resources currently assigned to a participant.
func (c *Client) ListInstanceResources(ctx context.Context, cluster, instance string) ([]string, error) {
	var resp struct {
		Resources []string `json:"resources"`
	}
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/instances/"+esc(instance)+"/resources", &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// GetInstanceConfig returns the participant config record.
func (c *Client) GetInstanceConfig(ctx context.Context, cluster, instance string) (*Record, error) {
	var rec Record
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/instances/"+esc(instance)+"/configs", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInstanceHistory returns participant session history, newest first.
func (c *Client) GetInstanceHistory(ctx context.Context, cluster, instance string) ([]HistoryEntry, error) {
	var rec Record
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/instances/"+esc(instance)+"/history", &rec); err != nil {
		return nil, err
	}
	return ParseHistory(rec.ListFields["HISTORY"]), nil
}

// GetController returns the cluster's leader controller.
func (c *Client) GetController(ctx context.Context, cluster string) (*Controller, error) {
	var raw map[string]any
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/controller", &raw); err != nil {
		return nil, err
	}
	ctrl := &Controller{Cluster: cluster, Fields: make(map[string]string)}
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "controller":
			ctrl.Name = s
		case "HELIX_VERSION":
			ctrl.Version = s
		case "SESSION_ID":
			ctrl.SessionID = s
		case "id":
		default:
			ctrl.Fields[k] = s
		}
	}
	if ctrl.Name == "" {
		return nil, fmt.Errorf("cluster %s has no leader controller: %w", cluster, ErrNotFound)
	}
	return ctrl, nil
}

// GetControllerHistory returns leadership history, newest first.
func (c *Client) GetControllerHistory(ctx context.Context, cluster string) ([]HistoryEntry, error) {
	var resp struct {
		History []string `json:"history"`
	}
	if err := c.get(ctx, "/clusters/"+esc(cluster)+"/controller/history", &resp); err != nil {
		return nil, err
	}
	return ParseHistory(resp.History), nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListClusters(ctx)
	var serr *StatusError
	if errors.As(err, &serr) && serr.StatusCode < 500 {
		return nil
	}
	return err
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
