package filestore

import (
	"testing"

	"github.com/koustreak/gardien/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, (&Config{Provider: ProviderMinIO, Endpoint: "h:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}).Validate())

	assert.True(t, errs.IsConfiguration((&Config{Provider: ProviderMinIO, Bucket: "b"}).Validate()))
	assert.True(t, errs.IsConfiguration((&Config{Provider: "s3", Bucket: "b"}).Validate()))
	assert.True(t, errs.IsConfiguration((&Config{Provider: ProviderLocal, Root: "x"}).Validate()))
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"a.csv", "dir/a.csv", "a..b"} {
		assert.NoError(t, ValidateKey(ok), ok)
	}
	for _, bad := range []string{"", "/a", "../a", "a/./b", `a\b`} {
		assert.Error(t, ValidateKey(bad), bad)
	}
}
