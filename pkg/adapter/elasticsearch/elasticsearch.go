// Package elasticsearch implements the Elasticsearch adapter over the
// cluster's REST API. Indices are sampled with match_all searches and
// the _source documents flattened into located field values.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/clients"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/json"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter samples Elasticsearch indices. Units are the open indices
// matching the scan URL's index pattern.
type Adapter struct {
	cfg  *config.ScanConfig
	src  *config.ElasticConfig
	http *clients.HTTPClient
	log  *zap.Logger
}

// New builds an Elasticsearch adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid elasticsearch url")
	}
	src, err := config.ElasticFromURL(u, &cfg.Security)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid elasticsearch url")
	}
	return &Adapter{
		cfg: cfg,
		src: src,
		log: logger.Get().With(zap.String("adapter", "elasticsearch")),
	}, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "elasticsearch" }

// Connect probes the cluster root so bad endpoints and credentials fail
// the run before any index is touched.
func (a *Adapter) Connect(ctx context.Context) error {
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.DialTimeout = a.cfg.Timeouts.Connection
	httpCfg.RequestTimeout = a.cfg.Timeouts.Unit
	a.http = clients.NewHTTPClient(httpCfg, a.log)

	resp, err := a.http.Get(ctx, a.src.Endpoint+"/", a.headers())
	if err != nil {
		return base.ClassifyNet(err, "connect")
	}
	if err := checkStatus(resp, "connect"); err != nil {
		if errors.IsType(err, errors.ErrorTypeUnit) {
			return errors.New(errors.ErrorTypeConfig,
				fmt.Sprintf("%s does not answer like an elasticsearch server", a.src.Endpoint))
		}
		return err
	}
	defer resp.Body.Close()

	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	dec := json.GetDecoder(resp.Body)
	err = dec.Decode(&info)
	json.PutDecoder(dec)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "connect: unreadable cluster info")
	}

	a.log.Info("connected",
		zap.String("cluster", info.ClusterName),
		zap.String("version", info.Version.Number))
	return nil
}

// Disconnect drops the pooled connections.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.http != nil {
		err := a.http.Close()
		a.http = nil
		return err
	}
	return nil
}

// ListUnits enumerates open indices matching the configured pattern.
// Dot-prefixed system indices are skipped; closed indices cannot be
// searched and are skipped too.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	target := a.src.Endpoint + "/_cat/indices/" + a.src.IndexPattern + "?format=json&h=index,status"
	resp, err := a.http.Get(ctx, target, a.headers())
	if err != nil {
		return nil, base.ClassifyNet(err, "list indices")
	}
	if err := checkStatus(resp, "list indices"); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []struct {
		Index  string `json:"index"`
		Status string `json:"status"`
	}
	dec := json.GetDecoder(resp.Body)
	err = dec.Decode(&rows)
	json.PutDecoder(dec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "list indices: unreadable catalog")
	}

	units := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.HasPrefix(row.Index, ".") || row.Status == "close" {
			continue
		}
		units = append(units, row.Index)
	}
	sort.Strings(units)
	return units, nil
}

// FetchSamples pulls up to limit documents with a match_all search and
// flattens each _source into dotted field paths.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "encode search request")
	}

	resp, err := a.http.Post(ctx, a.src.Endpoint+"/"+unit+"/_search", bytes.NewReader(payload), a.headers())
	if err != nil {
		return nil, base.ClassifyNet(err, "search "+unit)
	}
	if err := checkStatus(resp, "search "+unit); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	dec := json.GetDecoder(resp.Body)
	err = dec.Decode(&result)
	json.PutDecoder(dec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "search "+unit+": unreadable response")
	}

	var samples []core.Sample
	for _, hit := range result.Hits.Hits {
		if len(samples) >= limit {
			break
		}
		samples = flatten(samples, "", hit.Source, limit)
	}
	return samples, nil
}

// flatten walks a decoded _source depth-first, one sample per scalar
// leaf under its dotted field path. Array elements path as "field.N".
func flatten(samples []core.Sample, prefix string, value interface{}, limit int) []core.Sample {
	if len(samples) >= limit {
		return samples
	}

	switch v := value.(type) {
	case map[string]interface{}:
		for key, elem := range v {
			samples = flatten(samples, joinPath(prefix, key), elem, limit)
		}
	case []interface{}:
		for i, elem := range v {
			samples = flatten(samples, joinPath(prefix, strconv.Itoa(i)), elem, limit)
		}
	case string:
		if v != "" {
			samples = append(samples, core.Sample{Column: prefix, Value: v})
		}
	case float64:
		samples = append(samples, core.Sample{Column: prefix, Value: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return samples
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// headers builds the auth headers once per request. API keys win over
// basic credentials when both are configured.
func (a *Adapter) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	switch {
	case a.src.APIKey != "":
		h["Authorization"] = "ApiKey " + a.src.APIKey
	case a.src.Username != "":
		h["Authorization"] = "Basic " +
			base64.StdEncoding.EncodeToString([]byte(a.src.Username+":"+a.src.Password))
	}
	return h
}

// checkStatus maps non-2xx responses onto the engine's error taxonomy.
// The body is consumed for the server's explanation, so callers must not
// read it after a non-nil return.
func checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	_ = resp.Body.Close()
	msg := fmt.Sprintf("%s: %s: %s", operation, resp.Status, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New(errors.ErrorTypeAuthentication, msg)
	case resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.ErrorTypePermission, msg)
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrorTypeUnit, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeConnection, msg)
	case resp.StatusCode >= 500:
		return errors.New(errors.ErrorTypeConnection, msg)
	default:
		return errors.New(errors.ErrorTypeQuery, msg)
	}
}
