// internal/handlers/verification_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mediaseal/mediaseal-backend/internal/merkle"
	"github.com/mediaseal/mediaseal-backend/internal/services"
)

type VerificationProofSuite struct {
	suite.Suite
	router *gin.Engine
	tree   *merkle.Tree
}

func (s *VerificationProofSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	handler := NewVerificationHandler(services.NewVerificationService(nil))
	s.router = gin.New()
	s.router.POST("/v1/verify/proof", handler.VerifyProof)

	tree, err := merkle.BuildFromSet(merkle.LeafSet{
		VerificationCode: "code",
		OriginalSHA256:   "orig",
		ExactFrames:      "exact",
		MetadataHash:     "meta",
		Timestamp:        "2026-01-01T00:00:00Z",
	})
	require.NoError(s.T(), err)
	s.tree = tree
}

func (s *VerificationProofSuite) postProof(body interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/v1/verify/proof", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VerificationProofSuite) TestValidProof() {
	leaf, ok := s.tree.LeafFor(merkle.LabelOriginal)
	require.True(s.T(), ok)
	proof, ok := s.tree.Proof(merkle.LabelOriginal)
	require.True(s.T(), ok)

	w := s.postProof(map[string]interface{}{
		"leaf_hash": leaf,
		"proof":     proof,
		"root":      s.tree.Root,
	})

	assert.Equal(s.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(s.T(), response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.True(s.T(), data["valid"].(bool))
}

func (s *VerificationProofSuite) TestMismatchedProofIsResultNotError() {
	proof, ok := s.tree.Proof(merkle.LabelOriginal)
	require.True(s.T(), ok)

	w := s.postProof(map[string]interface{}{
		"leaf_hash": merkle.HashLeaf("tampered"),
		"proof":     proof,
		"root":      s.tree.Root,
	})

	// A failed verification is a 200 with valid=false.
	assert.Equal(s.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.False(s.T(), data["valid"].(bool))
}

func (s *VerificationProofSuite) TestMalformedPayload() {
	w := s.postProof(map[string]interface{}{"leaf_hash": "only-a-leaf"})
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func TestVerificationProofSuite(t *testing.T) {
	suite.Run(t, new(VerificationProofSuite))
}
