// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/shrinkr/internal/ffmpeg/skills"
	"github.com/ZSC714725/shrinkr/internal/profile"
)

// Encoders is the part of *ffmpeg.FFmpeg the skills endpoint needs
type Encoders interface {
	Skills() skills.Skills
	MissingEncoders(args []string) []string
}

// Skills GET /api/v1/skills
func (h *Handler) Skills(c *gin.Context) {
	if h.encoders == nil {
		errResp(c, http.StatusNotFound, "FFmpeg not available", "")
		return
	}
	c.JSON(http.StatusOK, SkillsResponse{
		Skills:          h.encoders.Skills(),
		MissingEncoders: missingEncoders(h.encoders, h.profiles),
	})
}

func missingEncoders(enc Encoders, profiles profile.Set) map[string][]string {
	out := make(map[string][]string)
	for _, name := range profiles.Names() {
		cmd := profiles[name].Template.Build("input", "output")
		if missing := enc.MissingEncoders(cmd.Args); len(missing) > 0 {
			out[name] = missing
		}
	}
	return out
}
