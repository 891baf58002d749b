// Copyright (C) 2026 The wiimatch authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rest exposes background matching as a REST service.
package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jhunkeler/wiimatch/internal/lsq"
	"github.com/jhunkeler/wiimatch/internal/stack"
)

// NewRouter builds the gin engine with all API routes registered.
func NewRouter() *gin.Engine {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/match", postMatch)
		}
	}
	return r
}

// Serve listens on the given address and serves the API until failure.
func Serve(addr string) error {
	return NewRouter().Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

type postMatchArgs struct {
	Stack  *stack.Stack `json:"stack"`
	Degree []int        `json:"degree"`
	Center []float64    `json:"center,omitempty"`
}

type postMatchReply struct {
	Degree       []int       `json:"degree"`
	Coefficients [][]float64 `json:"coefficients"`
}

func postMatch(c *gin.Context) {
	var args postMatchArgs
	if err := c.ShouldBind(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Stack == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing stack"})
		return
	}
	degree := args.Degree
	if len(degree) == 0 {
		degree = []int{0}
	}

	images, masks, sigmas, err := args.Stack.Arrays()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coefs, err := lsq.MatchLSQ(images, masks, sigmas, degree, args.Center, nil)
	if err != nil {
		var verr *lsq.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, postMatchReply{Degree: degree, Coefficients: coefs})
}
