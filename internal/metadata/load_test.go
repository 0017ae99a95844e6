package metadata

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/orders_page.json")
	require.NoError(t, err)
	return raw
}

func TestDecodeFixture(t *testing.T) {
	p, err := Decode(loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, "demo", p.PrjID)
	assert.Equal(t, "orders", p.FormID)
	require.NotNil(t, p.Action("aLoad"))
	assert.Len(t, p.Action("aLoad").Steps, 3)
	assert.Nil(t, p.Action("nope"))

	def, err := p.DataSetDef("qOrders")
	require.NoError(t, err)
	assert.Equal(t, "delOrder", def.SQLDeleteID)
	assert.Equal(t, []string{"orderId"}, def.SQLKeys)
}

func TestDecodeFlattensAlwaysActiveViews(t *testing.T) {
	p, err := Decode(loadFixture(t))
	require.NoError(t, err)

	v, err := p.View("vBrowse")
	require.NoError(t, err)

	eff := v.Effective()
	require.Len(t, eff, 3)
	// vShared (level 0) sorts before vBrowse's own objects (level 10).
	assert.Equal(t, "tbMain", eff[0].Object.ObjectName)
	assert.Equal(t, 0, eff[0].Level)
	assert.Equal(t, "grOrders", eff[1].Object.ObjectName)
	assert.Equal(t, 10, eff[1].Level)
}

func TestDecodeRejectsUnknownStepKind(t *testing.T) {
	raw := []byte(`{
		"prjId": "p", "formId": "f",
		"actions": [{"objectName": "a", "steps": [{"actionType": "launchMissiles"}]}]
	}`)
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsBadSelectedFlag(t *testing.T) {
	raw := []byte(`{
		"prjId": "p", "formId": "f",
		"views": [{"viewName": "v", "viewLevel": 1,
			"objects": [{"objectType": "grid", "objectName": "g", "selected": "X"}]}]
	}`)
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestNotFoundError(t *testing.T) {
	p, err := Decode(loadFixture(t))
	require.NoError(t, err)

	_, err = p.View("missing")
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "view", nf.Kind)
	assert.Equal(t, "missing", nf.Name)
}
