package registry

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const operator = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func TestRegistry_WithLeavesPreviousSnapshotUntouched(t *testing.T) {
	// --- Arrange ---
	empty := New(operator)

	// --- Act ---
	withToken := empty.With("token", map[string]cty.Value{
		AddressOutput: cty.StringVal("0x1111111111111111111111111111111111111111"),
	})

	// --- Assert ---
	assert.False(t, empty.Has("token"))
	assert.True(t, withToken.Has("token"))
	assert.Empty(t, empty.Steps())
	assert.Equal(t, []string{"token"}, withToken.Steps())
}

func TestRegistry_OutputLookup(t *testing.T) {
	r := New(operator).
		With("token", map[string]cty.Value{AddressOutput: cty.StringVal("0xaaaa")}).
		With("share_quote", map[string]cty.Value{"shares": cty.NumberIntVal(42)})

	val, ok := r.Output("share_quote", "shares")
	require.True(t, ok)
	assert.True(t, val.RawEquals(cty.NumberIntVal(42)))

	_, ok = r.Output("share_quote", "missing")
	assert.False(t, ok)
	_, ok = r.Output("vault", AddressOutput)
	assert.False(t, ok)
}

func TestRegistry_Handles(t *testing.T) {
	r := New(operator).
		WithService("token", map[string]cty.Value{AddressOutput: cty.StringVal("0xaaaa")}).
		With("mint", nil).
		WithService("vault", map[string]cty.Value{AddressOutput: cty.StringVal("0xbbbb")}).
		With("underlying", map[string]cty.Value{AddressOutput: cty.StringVal("0xaaaa")})

	h, ok := r.Handle("vault")
	require.True(t, ok)
	assert.Equal(t, ServiceHandle{Name: "vault", Address: "0xbbbb"}, h)

	_, ok = r.Handle("mint")
	assert.False(t, ok, "call steps do not create services")

	_, ok = r.Handle("underlying")
	assert.False(t, ok, "an address returned by a query is not a created service")
	val, ok := r.Output("underlying", AddressOutput)
	require.True(t, ok, "the output itself stays readable")
	assert.Equal(t, "0xaaaa", val.AsString())

	assert.Equal(t, []ServiceHandle{
		{Name: "token", Address: "0xaaaa"},
		{Name: "vault", Address: "0xbbbb"},
	}, r.Handles())
}

func TestRegistry_OutputsReturnsCopy(t *testing.T) {
	r := New(operator).With("token", map[string]cty.Value{AddressOutput: cty.StringVal("0xaaaa")})

	out, ok := r.Outputs("token")
	require.True(t, ok)
	out[AddressOutput] = cty.StringVal("0xbbbb")

	val, _ := r.Output("token", AddressOutput)
	assert.Equal(t, "0xaaaa", val.AsString())
}

func TestRegistry_RecordingTwicePanics(t *testing.T) {
	r := New(operator).With("token", nil)
	assert.Panics(t, func() { r.With("token", nil) })
}

func TestRegistry_EvalContextExposesStepsAndOperator(t *testing.T) {
	// --- Arrange ---
	r := New(operator).
		With("token", map[string]cty.Value{AddressOutput: cty.StringVal("0xaaaa")}).
		With("mint", nil)

	eval := func(src string) (cty.Value, hcl.Diagnostics) {
		expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
		require.False(t, diags.HasErrors(), diags.Error())
		return expr.Value(r.EvalContext())
	}

	// --- Act & Assert ---
	val, diags := eval("step.token.address")
	require.False(t, diags.HasErrors(), diags.Error())
	assert.Equal(t, "0xaaaa", val.AsString())

	val, diags = eval("operator")
	require.False(t, diags.HasErrors(), diags.Error())
	assert.Equal(t, operator, val.AsString())

	_, diags = eval("step.vault.address")
	assert.True(t, diags.HasErrors(), "unconfirmed steps must not resolve")
}
