package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"retail-backoffice/internal/ability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompile_Postgres(t *testing.T) {
	out, err := execute(t, "compile",
		"--entity", "Product",
		"--params", `{"page":2,"perPage":5,"select":"name","where":[{"attribute":"price","type":"greaterThanOrEquals","value":10}]}`)
	require.NoError(t, err)

	var res struct {
		Entity     string `json:"entity"`
		Dialect    string `json:"dialect"`
		Descriptor struct {
			Select map[string]any `json:"select"`
			Take   int            `json:"take"`
			Skip   int            `json:"skip"`
		} `json:"descriptor"`
		SQL      string `json:"sql"`
		Args     []any  `json:"args"`
		CountSQL string `json:"count_sql"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Product", res.Entity)
	assert.Equal(t, "postgres", res.Dialect)
	assert.Equal(t, map[string]any{"id": true, "name": true}, res.Descriptor.Select)
	assert.Equal(t, 5, res.Descriptor.Take)
	assert.Equal(t, 5, res.Descriptor.Skip)
	assert.Contains(t, res.SQL, ">= $1")
	assert.Contains(t, res.SQL, "LIMIT 5 OFFSET 5")
	assert.Equal(t, []any{float64(10)}, res.Args)
	assert.Contains(t, res.CountSQL, "SELECT COUNT(*) FROM")
}

func TestCompile_DialectFromEnv(t *testing.T) {
	t.Setenv("SEARCHC_DIALECT", "mariadb")
	t.Setenv("SEARCHC_PER_PAGE", "7")

	out, err := execute(t, "compile", "--entity", "orders", "--params", `{"page":1}`)
	require.NoError(t, err)

	var res struct {
		Dialect string `json:"dialect"`
		SQL     string `json:"sql"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "mysql", res.Dialect)
	assert.Contains(t, res.SQL, "`orders`")
	assert.Contains(t, res.SQL, "LIMIT 7 OFFSET 0")
}

func TestCompile_Errors(t *testing.T) {
	_, err := execute(t, "compile")
	assert.ErrorContains(t, err, "--entity is required")

	_, err = execute(t, "compile", "--entity", "BaseEntity")
	assert.ErrorContains(t, err, "unknown entity")

	_, err = execute(t, "compile", "--entity", "Product", "--params", `{"where":[`)
	assert.ErrorContains(t, err, "malformed")
}

func TestRules(t *testing.T) {
	out, err := execute(t, "rules",
		"--permissions", `{"Product":{"read":true},"Branch":false}`,
		"--fields", `{"Product":{"read":["name"]}}`,
		"--admin")
	require.NoError(t, err)

	var rules []ability.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Equal(t, []ability.Rule{
		{Action: ability.ActionRead, Subject: "Product", Fields: []string{"name"}},
		{Action: ability.ActionManage, Subject: ability.SubjectAll},
	}, rules)
}

func TestRules_Empty(t *testing.T) {
	out, err := execute(t, "rules")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	_, err = execute(t, "rules", "--permissions", `{"Product":"yes"}`)
	assert.ErrorContains(t, err, "invalid --permissions")
}
