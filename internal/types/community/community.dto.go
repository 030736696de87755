package community

type CreatePostRequest struct {
	Title            string   `json:"title" validate:"required,min=3,max=200"`
	Content          string   `json:"content" validate:"required,max=10000"`
	Tags             []string `json:"tags" validate:"max=10,dive,max=30"`
	ScreenshotBase64 string   `json:"screenshot_base64,omitempty"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type FeedResponse struct {
	Posts []*Post `json:"posts"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}
