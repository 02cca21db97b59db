package database

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// A generation references its paying token but never owns it, so deleting a
// user must be able to cascade through payment_tokens while the generation
// row survives with a nulled token_id.
func TestSchemaTokenReferenceDetachesOnDelete(t *testing.T) {
	fk := regexp.MustCompile(`FOREIGN KEY \(token_id\) REFERENCES payment_tokens\(id\) ON DELETE SET NULL`)
	assert.True(t, fk.MatchString(schema), "generations.token_id must detach, not block, when its token goes away")

	assert.Regexp(t, `token_id BIGINT NULL`, schema, "token_id has to be nullable for SET NULL to apply")
}
