package controllers

import (
	"strconv"

	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// paramID 解析路径中的正整数ID，失败时直接写入400响应
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.HandleError(c, utils.InvalidInput(name+" must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

// pickIDs 逗号分隔参数优先，其次为重复参数，最后为单个参数
func pickIDs(csv string, repeated []uint, single *uint) []uint {
	switch {
	case csv != "":
		return utils.ParseIDList(csv)
	case len(repeated) > 0:
		return repeated
	case single != nil:
		return []uint{*single}
	default:
		return nil
	}
}
