/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

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

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
)

// Client talks to the template API. It implements store.Store, so the editor
// and CLI can use a remote server like any local store.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.client = hc } }

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ClientOption { return func(c *Client) { c.client.Timeout = d } }

// WithInsecureTLS disables certificate verification, for development servers.
func WithInsecureTLS() ClientOption {
	return func(c *Client) {
		c.client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // opt-in for dev servers
	}
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// statusError is a non-2xx reply.
type statusError struct {
	Status  int
	Message string
	Details []string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server replied %d", e.Status)
	}
	return fmt.Sprintf("server replied %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", bearer(c.Token))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			se.Message, se.Details = eb.Error, eb.Details
		} else {
			se.Message = strings.TrimSpace(string(data))
		}
		return se
	}
	if dest == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// translate maps transport and status errors onto the domain taxonomy.
func translate(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusNotFound:
			return &domain.NotFound{Kind: "template", ID: id}
		case http.StatusBadRequest:
			return &domain.ParseError{Msg: se.Message, Details: se.Details}
		}
	}
	return domain.Persistence(op, id, err)
}

func (c *Client) List(ctx context.Context) ([]domain.TemplateDocument, error) {
	return c.list(ctx, "/api/templates")
}

func (c *Client) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error) {
	return c.list(ctx, "/api/templates?category="+url.QueryEscape(string(cat)))
}

// ListByTag returns templates carrying tag.
func (c *Client) ListByTag(ctx context.Context, tag string) ([]domain.TemplateDocument, error) {
	return c.list(ctx, "/api/templates?tag="+url.QueryEscape(tag))
}

func (c *Client) list(ctx context.Context, path string) ([]domain.TemplateDocument, error) {
	var docs []domain.TemplateDocument
	if err := c.do(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, translate("list", "", err)
	}
	for i := range docs {
		docs[i] = document.Normalize(docs[i])
	}
	return docs, nil
}

func (c *Client) GetByID(ctx context.Context, id string) (domain.TemplateDocument, error) {
	var doc domain.TemplateDocument
	if err := c.do(ctx, http.MethodGet, "/api/templates/"+url.PathEscape(id), nil, &doc); err != nil {
		return domain.TemplateDocument{}, translate("get", id, err)
	}
	return document.Normalize(doc), nil
}

// Save creates the template when it has no id and replaces it otherwise.
func (c *Client) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	var saved domain.TemplateDocument
	var err error
	if doc.ID == "" {
		err = c.do(ctx, http.MethodPost, "/api/templates", doc, &saved)
	} else {
		err = c.do(ctx, http.MethodPut, "/api/templates/"+url.PathEscape(doc.ID), doc, &saved)
	}
	if err != nil {
		return domain.TemplateDocument{}, translate("save", doc.ID, err)
	}
	return document.Normalize(saved), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return translate("delete", id, c.do(ctx, http.MethodDelete, "/api/templates/"+url.PathEscape(id), nil, nil))
}

// Catalog returns the server's public catalog.
func (c *Client) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	var entries []domain.CatalogEntry
	if err := c.do(ctx, http.MethodGet, "/api/catalog", nil, &entries); err != nil {
		return nil, translate("list", "", err)
	}
	return entries, nil
}

// Select asks the server to apply or gate a catalog template for the token's subject.
func (c *Client) Select(ctx context.Context, id string) (Selection, error) {
	var sel Selection
	if err := c.do(ctx, http.MethodPost, "/api/catalog/"+url.PathEscape(id)+"/select", nil, &sel); err != nil {
		return Selection{}, translate("select", id, err)
	}
	return sel, nil
}

// Ping checks /readyz.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}
