package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestPickIDs(t *testing.T) {
	one := uint(9)

	assert.Equal(t, []uint{1, 2}, pickIDs("1,2", []uint{3}, &one))
	assert.Equal(t, []uint{3, 4}, pickIDs("", []uint{3, 4}, &one))
	assert.Equal(t, []uint{9}, pickIDs("", nil, &one))
	assert.Nil(t, pickIDs("", nil, nil))
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		_, ok := paramID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := paramID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}
