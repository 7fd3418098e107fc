package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/query"
	"github.com/Zacison/natours-backend/repository"
	"github.com/Zacison/natours-backend/utils"
)

type ToursController struct {
	tours       repository.TourRepository
	maxPageSize int
	now         func() time.Time
}

func NewToursController(tours repository.TourRepository, maxPageSize int) *ToursController {
	return &ToursController{tours: tours, maxPageSize: maxPageSize, now: time.Now}
}

// AliasTopTours presets the query for the five best cheap tours.
func AliasTopTours(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("limit", "5")
	q.Set("sort", "-ratingsAverage,price")
	q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	c.Request.URL.RawQuery = q.Encode()
	c.Next()
}

// GetAllTours lists tours filtered, sorted, projected and paged by the
// query string.
func (h *ToursController) GetAllTours(c *gin.Context) {
	q, err := query.Parse(c.Request.URL.Query(), h.maxPageSize)
	if err != nil {
		_ = c.Error(err)
		return
	}

	tours, err := h.tours.Find(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := success(gin.H{"tours": tours})
	resp["results"] = len(tours)
	c.JSON(http.StatusOK, resp)
}

func (h *ToursController) GetTour(c *gin.Context) {
	tour, err := h.tours.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, success(gin.H{"tour": tour}))
}

func (h *ToursController) CreateTour(c *gin.Context) {
	var input models.TourInput
	if !bindJSON(c, &input) {
		return
	}

	tour := input.Tour(h.now())
	if err := h.tours.Create(c.Request.Context(), &tour); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, success(gin.H{"tour": tour}))
}

// UpdateTour applies a partial update. Only supplied fields are validated.
func (h *ToursController) UpdateTour(c *gin.Context) {
	var patch models.TourPatch
	if !bindJSON(c, &patch) {
		return
	}
	if patch.Price != nil && patch.PriceDiscount != nil && *patch.PriceDiscount >= *patch.Price {
		_ = c.Error(utils.ValidationFailed([]string{"priceDiscount should be below price"}, nil))
		return
	}

	tour, err := h.tours.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, success(gin.H{"tour": tour}))
}

func (h *ToursController) DeleteTour(c *gin.Context) {
	if err := h.tours.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ToursController) GetTourStats(c *gin.Context) {
	stats, err := h.tours.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, success(gin.H{"stats": stats}))
}

func (h *ToursController) GetMonthlyPlan(c *gin.Context) {
	raw := c.Param("year")
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		_ = c.Error(utils.NewValidation("Invalid year: " + raw + "."))
		return
	}

	plan, err := h.tours.MonthlyPlan(c.Request.Context(), year)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, success(gin.H{"plan": plan}))
}
