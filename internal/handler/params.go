package handlers

import (
	"strconv"
	"strings"

	"SOSRelay/pkg/errors"
	"SOSRelay/pkg/geo"

	"github.com/gin-gonic/gin"
)

const defaultSearchRadiusKm = 2.0

// bind 解析 JSON 请求体，失败时转为 Validation 错误
func bind(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errors.Validation("invalid request body: %v", err)
	}
	return nil
}

// searchArea 读取 lat、lng、radius 查询参数
func searchArea(c *gin.Context) (geo.Coordinate, float64, error) {
	lat, lng := c.Query("lat"), c.Query("lng")
	if lat == "" || lng == "" {
		return geo.Coordinate{}, 0, errors.Validation("lat and lng are required")
	}
	var center geo.Coordinate
	var err error
	if center.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return geo.Coordinate{}, 0, errors.Validation("invalid lat %q", lat)
	}
	if center.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return geo.Coordinate{}, 0, errors.Validation("invalid lng %q", lng)
	}
	radius := defaultSearchRadiusKm
	if raw := c.Query("radius"); raw != "" {
		if radius, err = strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			return geo.Coordinate{}, 0, errors.Validation("invalid radius %q", raw)
		}
	}
	return center, radius, nil
}
