package controllers

import (
	"bookstore_go/services"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// TaxonomyController 作者与分类
type TaxonomyController struct {
	taxonomy *services.TaxonomyService
}

func NewTaxonomyController(taxonomy *services.TaxonomyService) *TaxonomyController {
	return &TaxonomyController{taxonomy: taxonomy}
}

// Authors 作者列表
func (tc *TaxonomyController) Authors(c *gin.Context) {
	authors, err := tc.taxonomy.Authors(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": authors})
}

// Categories 分类列表
func (tc *TaxonomyController) Categories(c *gin.Context) {
	categories, err := tc.taxonomy.Categories(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": categories})
}
