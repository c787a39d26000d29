package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/errs"
	"suiml.io/suiml/inference"
	"suiml.io/suiml/model"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/storage"
	"suiml.io/suiml/sui"
)

func (s *Server) encode(c *gin.Context) {
	var req model.EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	scale := model.DefaultScale
	if req.Scale != nil {
		scale = *req.Scale
	}
	v, err := quant.Encode(req.Values, scale)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) decode(c *gin.Context) {
	var req model.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	values, err := quant.Decode(req.Vector(), req.Scale)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.DecodeResponse{Values: values})
}

func (s *Server) convertModel(c *gin.Context) {
	scale := model.DefaultScale
	if q := c.Query("scale"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			badRequest(c, "scale must be an integer")
			return
		}
		scale = n
	}
	f, err := model.LoadFloatModel(c.Request.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	m, err := model.Convert(f, scale)
	if err != nil {
		abortWithError(c, err)
		return
	}
	id, err := s.identify(c, m)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ConvertResponse{
		ModelSummary: model.ModelSummary{CID: id.String(), Stats: model.ComputeStats(m)},
		Model:        m,
	})
}

// identify stores m when a store is configured and returns its CID either way.
func (s *Server) identify(c *gin.Context, m model.QuantizedModel) (cid.Cid, error) {
	if s.store == nil {
		return m.CID()
	}
	return model.PutModel(c.Request.Context(), s.store, m)
}

func (s *Server) validateModel(c *gin.Context) {
	m, err := model.Load(c.Request.Body)
	if err != nil {
		abortWithError(c, err)
		return
	}
	id, err := m.CID()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ModelSummary{CID: id.String(), Stats: model.ComputeStats(m)})
}

func (s *Server) getModel(c *gin.Context) {
	if s.store == nil {
		unavailable(c, "no blob store configured")
		return
	}
	m, ok := s.loadModel(c, c.Param("cid"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) loadModel(c *gin.Context, raw string) (model.QuantizedModel, bool) {
	id, err := cidutil.Parse(raw)
	if err != nil {
		abortWithError(c, storage.AsError("parse cid", storage.ErrInvalidCID))
		return model.QuantizedModel{}, false
	}
	m, err := model.GetModel(c.Request.Context(), s.store, id)
	if err != nil {
		abortWithError(c, err)
		return model.QuantizedModel{}, false
	}
	return m, true
}

func (s *Server) listModels(c *gin.Context) {
	l, ok := s.store.(storage.Lister)
	if !ok {
		unavailable(c, "blob store cannot list its contents")
		return
	}
	ids, err := l.List(c.Request.Context())
	if err != nil {
		abortWithError(c, storage.AsError("list models", err))
		return
	}
	out := model.ModelList{CIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.CIDs = append(out.CIDs, id.String())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) uploadModel(c *gin.Context) {
	if s.chain == nil {
		unavailable(c, "no chain client configured")
		return
	}
	var req model.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if (req.Model == nil) == (req.CID == "") {
		badRequest(c, "exactly one of model or cid is required")
		return
	}

	var m model.QuantizedModel
	if req.Model != nil {
		m = *req.Model
		if err := m.Validate(); err != nil {
			abortWithError(c, err)
			return
		}
	} else {
		if s.store == nil {
			unavailable(c, "no blob store configured")
			return
		}
		var ok bool
		if m, ok = s.loadModel(c, req.CID); !ok {
			return
		}
	}
	id, err := s.identify(c, m)
	if err != nil {
		abortWithError(c, err)
		return
	}

	res, err := s.chain.UploadModel(c.Request.Context(), m, req.Info)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := model.UploadResponse{
		Digest:  res.Digest,
		Created: make([]string, 0, len(res.Created)),
		CID:     id.String(),
	}
	if !res.ModelID.IsZero() {
		out.ModelID = res.ModelID.String()
	}
	for _, o := range res.Created {
		out.Created = append(out.Created, o.String())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) predict(c *gin.Context) {
	if s.chain == nil {
		unavailable(c, "no chain client configured")
		return
	}
	var req model.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	modelID, err := sui.ParseAddress(req.ModelID)
	if err != nil {
		abortWithError(c, errs.Wrap(errs.KindValidation, errs.CodeInvalidInput, "model_id", err))
		return
	}

	var (
		ireq  inference.Request
		scale = -1
	)
	if req.CID != "" {
		if s.store == nil {
			unavailable(c, "no blob store configured")
			return
		}
		m, ok := s.loadModel(c, req.CID)
		if !ok {
			return
		}
		scale = int(m.Scale)
		input, err := quant.Encode(req.Input, scale)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if ireq, err = inference.RequestForModel(modelID, m, input); err != nil {
			abortWithError(c, err)
			return
		}
	} else {
		ireq = inference.Request{
			ModelID:         modelID,
			LayerCount:      req.LayerCount,
			LayerDimensions: req.LayerDimensions,
			Input:           quant.Vector{Magnitude: req.InputMagnitude, Sign: req.InputSign},
		}
	}

	res, err := s.chain.Predict(c.Request.Context(), ireq)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := model.PredictResponse{
		Digest:      res.Digest,
		Magnitudes:  res.Magnitudes,
		Signs:       res.Signs,
		ArgmaxIndex: res.ArgmaxIndex,
		Calls:       res.Calls,
	}
	if scale >= 0 {
		if out.Values, err = res.Decode(scale); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, out)
}
