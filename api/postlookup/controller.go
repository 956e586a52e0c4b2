/*
Package postlookup - 帖子查询 API 控制器

职责:
1. 解析路径参数并构造查询
2. 通过 Dispatcher 执行查询
3. 空结果返回 204，其余结果统一包装

错误处理原则:
1. 参数错误: shared.NewValidationError 映射为 400
2. 查询失败: 固定消息返回 500，真实原因只记录日志
*/
package postlookup

import (
	"context"
	"fmt"
	"strconv"

	"postquery/api/ctxutil"
	"postquery/api/response"
	"postquery/application/query"
	"postquery/domain/post"
	"postquery/domain/shared"
	"postquery/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Dispatcher runs read queries.
type Dispatcher interface {
	Dispatch(ctx context.Context, q query.Query) ([]*post.Post, error)
}

// LookupResponse is the data section of a successful lookup.
type LookupResponse struct {
	Posts []*post.Post `json:"posts"`
}

// Controller 帖子查询控制器
type Controller struct {
	dispatcher Dispatcher
}

func NewController(dispatcher Dispatcher) *Controller {
	return &Controller{dispatcher: dispatcher}
}

// RegisterRoutes 注册查询路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	lookupGroup := router.Group("/postLookup")
	{
		lookupGroup.GET("", c.GetAllPosts)
		lookupGroup.GET("/byId/:postId", c.GetPostByID)
		lookupGroup.GET("/byAuthor/:author", c.GetPostsByAuthor)
		lookupGroup.GET("/withComments", c.GetPostsWithComments)
		lookupGroup.GET("/withLikes/:numberOfLikes", c.GetPostsWithLikes)
	}
}

// GetAllPosts GET /api/v1/postLookup
func (c *Controller) GetAllPosts(ctx *gin.Context) {
	c.lookup(ctx, query.FindAll{})
}

// GetPostByID GET /api/v1/postLookup/byId/:postId
func (c *Controller) GetPostByID(ctx *gin.Context) {
	postID := ctx.Param("postId")
	if _, err := uuid.Parse(postID); err != nil {
		response.HandleAppError(ctx, shared.NewValidationError("post", "postId", "postId must be a valid UUID"))
		return
	}
	c.lookup(ctx, query.FindByID{ID: postID})
}

// GetPostsByAuthor GET /api/v1/postLookup/byAuthor/:author
func (c *Controller) GetPostsByAuthor(ctx *gin.Context) {
	c.lookup(ctx, query.FindByAuthor{Author: ctx.Param("author")})
}

// GetPostsWithComments GET /api/v1/postLookup/withComments
func (c *Controller) GetPostsWithComments(ctx *gin.Context) {
	c.lookup(ctx, query.FindWithComments{})
}

// GetPostsWithLikes GET /api/v1/postLookup/withLikes/:numberOfLikes
func (c *Controller) GetPostsWithLikes(ctx *gin.Context) {
	threshold, err := strconv.Atoi(ctx.Param("numberOfLikes"))
	if err != nil {
		response.HandleAppError(ctx, shared.NewValidationError("post", "numberOfLikes", "numberOfLikes must be an integer"))
		return
	}
	c.lookup(ctx, query.FindWithLikes{Threshold: threshold})
}

func (c *Controller) lookup(ctx *gin.Context, q query.Query) {
	posts, err := c.dispatcher.Dispatch(ctxutil.WithRequestID(ctx), q)
	if err != nil {
		response.HandleAppError(ctx, errors.QueryFailed(err))
		return
	}
	if len(posts) == 0 {
		response.HandleNoContent(ctx)
		return
	}
	response.HandleSuccess(ctx, LookupResponse{Posts: posts}, fmt.Sprintf("Successfully returned %d post(s)", len(posts)))
}
