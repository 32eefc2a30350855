// ABOUTME: REST server for object mutation, state, and cascade delete operations
// ABOUTME: Thin gin routes over the engine plus health and Prometheus metrics endpoints
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/harperreed/cistore/engine"
	"github.com/harperreed/cistore/models"
	"github.com/harperreed/cistore/viz"
)

// UserHeader carries the acting user id.
const UserHeader = "X-User-ID"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

type Server struct {
	engine   *engine.Engine
	log      *zap.Logger
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

// NewServer builds the router. gatherer backs /metrics; nil disables it.
func NewServer(e *engine.Engine, log *zap.Logger, gatherer prometheus.Gatherer) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{engine: e, log: log, gatherer: gatherer}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("cistore"))
	router.Use(s.requestLogger())
	s.setupRoutes(router)
	s.router = router
	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting web server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	rest := router.Group("/rest")
	{
		objects := rest.Group("/objects")
		{
			objects.POST("", s.insertObject)
			objects.POST("/", s.insertObject)
			objects.GET("/:id", s.getObject)
			objects.GET("/:id/state", s.getObjectState)
			objects.PUT("/:id", s.updateObjects)
			objects.PATCH("/:id", s.updateObjects)
			objects.PUT("/:id/state", s.setObjectState)
			objects.POST("/:id/run", s.runManual)
			objects.GET("/clean/:typeID", s.unstructuredObjects)
			objects.PUT("/clean/:typeID", s.cleanType)
			objects.DELETE("/:id", s.deleteObject)
			objects.DELETE("/:id/locations", s.deleteObjectWithLocations)
			objects.DELETE("/:id/children", s.deleteObjectWithChildren)
			objects.DELETE("/delete/:ids", s.deleteMany)
		}

		locs := rest.Group("/locations")
		{
			locs.POST("", s.placeObject)
			locs.GET("/:id/descendants", s.locationDescendants)
			locs.GET("/graph", s.locationGraph)
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(RequestIDHeader, reqID)

		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// writeError maps the engine taxonomy onto HTTP.
func (s *Server) writeError(c *gin.Context, err error) {
	status := engine.Status(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "status": status})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "status": http.StatusBadRequest})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name+": "+c.Param(name))
		return 0, false
	}
	return id, true
}

// parseIDList parses "1,2,3".
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no ids given")
	}
	return ids, nil
}

// actingUser reads the user id header; missing means the system user 0.
func actingUser(c *gin.Context) (int64, bool) {
	raw := c.GetHeader(UserHeader)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+UserHeader+" header")
		return 0, false
	}
	return id, true
}

func (s *Server) insertObject(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	var in models.NewObject
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	obj, err := s.engine.Mutations.Insert(c.Request.Context(), in, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

func (s *Server) getObject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	obj, err := s.engine.Mutations.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (s *Server) getObjectState(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	active, err := s.engine.Mutations.GetState(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

// updateObjects patches the path id, or every id in ?objectIDs= when given.
func (s *Server) updateObjects(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	var patch models.ObjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err.Error())
		return
	}

	if raw := c.Query("objectIDs"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			badRequest(c, "invalid objectIDs: "+err.Error())
			return
		}
		c.JSON(http.StatusOK, s.engine.Mutations.UpdateMany(c.Request.Context(), ids, patch, user))
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	obj, err := s.engine.Mutations.Update(c.Request.Context(), id, patch, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, obj)
}

func (s *Server) setObjectState(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	active, err := engine.ParseActiveState(body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	changed, err := s.engine.Mutations.SetActive(c.Request.Context(), id, active, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !changed {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (s *Server) runManual(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.engine.Mutations.RunManual(c.Request.Context(), id, user); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"object_id": id})
}

func (s *Server) unstructuredObjects(c *gin.Context) {
	typeID, ok := idParam(c, "typeID")
	if !ok {
		return
	}
	objs, err := s.engine.Mutations.UnstructuredObjects(c.Request.Context(), typeID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, objs)
}

func (s *Server) cleanType(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	typeID, ok := idParam(c, "typeID")
	if !ok {
		return
	}
	res, err := s.engine.Mutations.CleanType(c.Request.Context(), typeID, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteObject(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.engine.Cascades.DeleteObject(c.Request.Context(), id, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteObjectWithLocations(c *gin.Context) {
	s.cascade(c, s.engine.Cascades.DeleteObjectWithLocationSubtree)
}

func (s *Server) deleteObjectWithChildren(c *gin.Context) {
	s.cascade(c, s.engine.Cascades.DeleteObjectWithChildObjects)
}

func (s *Server) cascade(c *gin.Context, fn func(context.Context, int64, int64) (*models.CascadeResult, error)) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), id, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteMany(c *gin.Context) {
	user, ok := actingUser(c)
	if !ok {
		return
	}
	ids, err := parseIDList(c.Param("ids"))
	if err != nil {
		badRequest(c, "invalid ids: "+err.Error())
		return
	}
	deleted, err := s.engine.Cascades.DeleteMany(c.Request.Context(), ids, user)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

type placeRequest struct {
	ObjectID int64  `json:"object_id" binding:"required"`
	Parent   int64  `json:"parent"`
	Name     string `json:"name"`
}

func (s *Server) placeObject(c *gin.Context) {
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	loc, err := s.engine.Locations.Place(c.Request.Context(), req.ObjectID, req.Parent, req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (s *Server) locationDescendants(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	locs, err := s.engine.Locations.Descendants(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, locs)
}

func (s *Server) locationGraph(c *gin.Context) {
	formatName := c.DefaultQuery("format", "svg")
	format, ok := viz.Formats[formatName]
	if !ok {
		badRequest(c, "invalid format: "+formatName)
		return
	}
	var root int64
	if raw := c.Query("root"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid root: "+raw)
			return
		}
		root = id
	}

	tree, err := s.engine.Locations.Tree(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if root != models.RootParent {
		if _, ok := tree.Get(root); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found", "status": http.StatusNotFound})
			return
		}
	}
	out, err := viz.NewLocationGraph(tree).Render(c.Request.Context(), root, format)
	if err != nil {
		s.writeError(c, err)
		return
	}

	contentType := map[string]string{
		"dot": "text/vnd.graphviz",
		"svg": "image/svg+xml",
		"png": "image/png",
	}[formatName]
	c.Data(http.StatusOK, contentType, out)
}
