package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/board"
	"github.com/zulandar/boardsync/internal/broadcast"
)

type nameBody struct {
	Name string `json:"name"`
}

type titleBody struct {
	Title string `json:"title"`
}

type cardBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return false
	}
	return true
}

// changed invalidates the cache and announces a create, edit or delete to
// the project, the originating connection included.
func (s *Server) changed(c *gin.Context, scope board.Scope, typ, message string, data interface{}) {
	ctx := c.Request.Context()
	s.exec.Invalidate(ctx)
	actor := actorName(c, "")
	s.bc.Announce(ctx, broadcast.Announcement{
		ProjectID: scope.ProjectID,
		BoardID:   scope.BoardID,
		Type:      typ,
		Message:   actor + " " + message,
		Actor:     actor,
		Data:      data,
	})
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := board.ListProjects(s.db.WithContext(c.Request.Context()))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var body nameBody
	if !bind(c, &body) {
		return
	}
	p, err := board.CreateProject(s.db.WithContext(c.Request.Context()), body.Name)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, board.Scope{ProjectID: p.ID}, broadcast.TypeProjectCreated,
		fmt.Sprintf("created project %q", p.Name), p)
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListBoards(c *gin.Context) {
	projectID, ok := paramID(c)
	if !ok {
		return
	}
	boards, err := board.ListBoards(s.db.WithContext(c.Request.Context()), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, boards)
}

func (s *Server) handleCreateBoard(c *gin.Context) {
	projectID, ok := paramID(c)
	if !ok {
		return
	}
	var body nameBody
	if !bind(c, &body) {
		return
	}
	b, err := board.CreateBoard(s.db.WithContext(c.Request.Context()), projectID, body.Name)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, board.Scope{ProjectID: projectID, BoardID: b.ID}, broadcast.TypeBoardCreated,
		fmt.Sprintf("created board %q", b.Name), b)
	c.JSON(http.StatusCreated, b)
}

func (s *Server) handleGetBoard(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	b, err := board.GetBoard(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDeleteBoard(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	scope, err := board.DeleteBoard(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeBoardDeleted, fmt.Sprintf("deleted board #%d", id), gin.H{"id": id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateList(c *gin.Context) {
	boardID, ok := paramID(c)
	if !ok {
		return
	}
	var body titleBody
	if !bind(c, &body) {
		return
	}
	l, scope, err := board.CreateList(s.db.WithContext(c.Request.Context()), boardID, body.Title)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeListCreated, fmt.Sprintf("created list %q", l.Title), l)
	c.JSON(http.StatusCreated, l)
}

func (s *Server) handleRenameList(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body titleBody
	if !bind(c, &body) {
		return
	}
	l, scope, err := board.RenameList(s.db.WithContext(c.Request.Context()), id, body.Title)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeListEdited, fmt.Sprintf("renamed list to %q", l.Title), l)
	c.JSON(http.StatusOK, l)
}

func (s *Server) handleDeleteList(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	scope, err := board.DeleteList(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeListDeleted, fmt.Sprintf("deleted list #%d", id), gin.H{"id": id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateCard(c *gin.Context) {
	listID, ok := paramID(c)
	if !ok {
		return
	}
	var body cardBody
	if !bind(c, &body) {
		return
	}
	in := board.CardInput{}
	if body.Title != nil {
		in.Title = *body.Title
	}
	if body.Description != nil {
		in.Description = *body.Description
	}
	if body.ImageURL != nil {
		in.ImageURL = *body.ImageURL
	}
	card, scope, err := board.CreateCard(s.db.WithContext(c.Request.Context()), listID, in)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeCardCreated, fmt.Sprintf("created card %q", card.Title), card)
	c.JSON(http.StatusCreated, card)
}

func (s *Server) handleGetCard(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	card, err := board.GetCard(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleUpdateCard(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var body cardBody
	if !bind(c, &body) {
		return
	}
	card, scope, err := board.UpdateCard(s.db.WithContext(c.Request.Context()), id, board.CardUpdate{
		Title:       body.Title,
		Description: body.Description,
		ImageURL:    body.ImageURL,
	})
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeCardEdited, fmt.Sprintf("edited card %q", card.Title), card)
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	scope, err := board.DeleteCard(s.db.WithContext(c.Request.Context()), id)
	if err != nil {
		fail(c, err)
		return
	}
	s.changed(c, scope, broadcast.TypeCardDeleted, fmt.Sprintf("deleted card #%d", id), gin.H{"id": id})
	c.Status(http.StatusNoContent)
}
