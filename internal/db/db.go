// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	_ "github.com/lib/pq" // postgres driver

	"github.com/mrdp/mrdp/internal/aws"
)

// Default connection values for the operational database and the warehouse.
const (
	DefaultRDSPort      = 5432
	DefaultRDSName      = "medrobotics"
	DefaultRDSUser      = "dbadmin"
	DefaultRedshiftPort = 5439
	DefaultRedshiftName = "medrobotics_dw"
	DefaultRedshiftUser = "dwadmin"
)

// Params describes one PostgreSQL-protocol endpoint. When SecretARN is set
// and Password is empty the password is read from Secrets Manager.
type Params struct {
	Host           string
	Port           int
	DBName         string
	User           string
	Password       string
	SecretARN      string
	SSLMode        string
	ConnectTimeout time.Duration
}

// Validate reports missing required fields.
func (p Params) Validate() error {
	var missing []string
	if p.Host == "" {
		missing = append(missing, "host")
	}
	if p.DBName == "" {
		missing = append(missing, "dbname")
	}
	if p.User == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing connection parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DSN renders p as a lib/pq key/value connection string.
func (p Params) DSN() string {
	kv := map[string]string{
		"host":   p.Host,
		"dbname": p.DBName,
		"user":   p.User,
	}
	if p.Port > 0 {
		kv["port"] = strconv.Itoa(p.Port)
	}
	if p.Password != "" {
		kv["password"] = p.Password
	}
	if p.SSLMode != "" {
		kv["sslmode"] = p.SSLMode
	}
	if p.ConnectTimeout > 0 {
		kv["connect_timeout"] = strconv.Itoa(int(p.ConnectTimeout.Seconds()))
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+quoteValue(kv[k]))
	}
	return strings.Join(parts, " ")
}

// quoteValue quotes a DSN value when it is empty or contains characters
// that lib/pq would otherwise split on.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Redacted renders p for logs without the password.
func (p Params) Redacted() string {
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Host, p.Port, p.DBName)
}

// ResolvePassword fills Password from the secret when one is configured.
func (p *Params) ResolvePassword(ctx context.Context, api aws.SecretsAPI) error {
	if p.Password != "" || p.SecretARN == "" {
		return nil
	}
	if api == nil {
		return errors.New("secret ARN set but no secrets client available")
	}
	pw, err := aws.SecretPassword(ctx, api, p.SecretARN)
	if err != nil {
		return err
	}
	p.Password = pw
	return nil
}

// Open resolves the password, opens a pool and verifies connectivity.
func Open(ctx context.Context, p Params, secrets aws.SecretsAPI) (*sql.DB, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.ResolvePassword(ctx, secrets); err != nil {
		return nil, fmt.Errorf("failed to resolve password for %s: %w", p.Redacted(), err)
	}

	conn, err := sql.Open("postgres", p.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p.Redacted(), err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", p.Redacted(), err)
	}
	log.WithField("db", p.Redacted()).Debug("connected")
	return conn, nil
}
