package protocol

import (
	"testing"

	"tether/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionCommitAppliesMutationsInOrder(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	var applied []string
	tx, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Stage(func() { applied = append(applied, "first") }))
	require.NoError(t, tx.Stage(func() { applied = append(applied, "second") }))

	assert.Empty(t, applied, "mutations must stay buffered until commit")
	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"first", "second"}, applied)
	assert.False(t, c.InTransaction())
}

func TestTransactionAbortDiscardsMutations(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	systemPrompt := "You are a guide."
	tx, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Stage(func() { systemPrompt = "You are a pirate." }))

	require.NoError(t, tx.Abort())
	assert.Equal(t, "You are a guide.", systemPrompt)
	assert.False(t, c.InTransaction())
}

func TestNestedBeginIsRejected(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	tx, err := c.BeginTransaction()
	require.NoError(t, err)

	_, err = c.BeginTransaction()
	var conflict *api.TransactionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "begin", conflict.Op)

	// The original transaction is unaffected by the rejected begin.
	require.NoError(t, tx.Commit())
}

func TestCommitWithoutOpenTransaction(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	tx, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var conflict *api.TransactionConflictError
	assert.ErrorAs(t, tx.Commit(), &conflict)
	assert.ErrorAs(t, tx.Abort(), &conflict)
}

func TestStageAfterCloseIsRejected(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	tx, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Abort())

	var conflict *api.TransactionConflictError
	assert.ErrorAs(t, tx.Stage(func() {}), &conflict)
}

func TestNewTransactionAfterCommit(t *testing.T) {
	c := New("http://localhost:8090/mcp", TransportStreamableHTTP)

	tx1, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx1.Commit())

	tx2, err := c.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx2.Abort())
}
