package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustMarshalJSON(t *testing.T) {
	assert.Equal(t, `{"lead_id":"42"}`, string(MustMarshalJSON(map[string]string{"lead_id": "42"})))
	assert.Panics(t, func() { MustMarshalJSON(make(chan int)) })
}

func TestPrettyJSON(t *testing.T) {
	got := PrettyJSON(map[string][]int{"data": {1}})
	assert.Equal(t, "{\n  \"data\": [\n    1\n  ]\n}", got)
	assert.Contains(t, PrettyJSON(func() {}), "<unprintable")
}
