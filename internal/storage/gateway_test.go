package storage

// Test Plan for Gateway:
// - A constraint violation returns ErrStatement, is counted once and logged once
// - The log entry carries table, op and the escaped statement text
// - INSERT OR IGNORE on an existing key returns inserted=false without error
// - Scalar on no rows returns found=false
// - Statements are counted by operation

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_StatementFailure(t *testing.T) {
	t.Parallel()
	log, hook := logtest.NewNullLogger()
	s, err := Open(Options{Path: MemoryPath, Logger: log})
	require.NoError(t, err)
	defer s.Close()

	// decl_base.decl_id references a missing decl.
	bad := Insert("decl_base").
		Set("decl_id", Int(99)).
		Set("base_id", Int(98)).
		Set("position", Int(0)).
		Set("access", Text("it's public"))
	_, _, err = s.gateway.Insert(bad)
	require.ErrorIs(t, err, ErrStatement)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Failures("insert", "decl_base")))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "decl_base", entry.Data["table"])
	assert.Equal(t, "insert", entry.Data["op"])
	assert.Contains(t, entry.Data["statement"], "'it''s public'")
}

func TestGateway_InsertOrIgnore(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	id, inserted, err := s.gateway.Insert(Insert("file").Set("path", Text("a.h")).OrIgnore())
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Positive(t, id)

	id, inserted, err = s.gateway.Insert(Insert("file").Set("path", Text("a.h")).OrIgnore())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, id)
}

func TestGateway_ScalarNotFound(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	_, found, err := s.gateway.ScalarInt(SelectID("decl").Where("name", Text("nope")))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGateway_CountsStatements(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)

	_, _, err := s.Resolver().File("a.h")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.statements.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.statements.WithLabelValues("select")))
}
