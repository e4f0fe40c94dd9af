package payroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoutil "hrpay/internal/platform/crypto"
)

const (
	salaryKeyA = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	salaryKeyB = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"
)

func TestDecryptSalary(t *testing.T) {
	keyA, err := cryptoutil.New(salaryKeyA)
	require.NoError(t, err)
	sealed, err := keyA.EncryptDecimal(dec("10000"))
	require.NoError(t, err)

	value, err := decryptSalary(keyA, sealed, nil)
	require.NoError(t, err)
	assert.True(t, value.Equal(dec("10000")))

	plain := "4200.50"
	value, err = decryptSalary(keyA, nil, &plain)
	require.NoError(t, err)
	assert.True(t, value.Equal(dec("4200.50")))

	value, err = decryptSalary(keyA, nil, nil)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestDecryptSalaryRejectsUnreadableCiphertext(t *testing.T) {
	keyA, err := cryptoutil.New(salaryKeyA)
	require.NoError(t, err)
	keyB, err := cryptoutil.New(salaryKeyB)
	require.NoError(t, err)
	unset, err := cryptoutil.New("")
	require.NoError(t, err)
	sealed, err := keyA.EncryptDecimal(dec("10000"))
	require.NoError(t, err)

	_, err = decryptSalary(keyB, sealed, nil)
	assert.Error(t, err, "wrong key must not yield a zero salary")

	fallback := "10000"
	_, err = decryptSalary(keyB, sealed, &fallback)
	assert.Error(t, err, "an unreadable encrypted salary must not fall back to the plain column")

	_, err = decryptSalary(unset, sealed, nil)
	assert.ErrorIs(t, err, errSalaryKeyMissing)

	_, err = decryptSalary(keyA, []byte("short"), nil)
	assert.Error(t, err)

	garbled := "ten thousand"
	_, err = decryptSalary(keyA, nil, &garbled)
	assert.Error(t, err)
}
