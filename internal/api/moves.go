package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardsync/internal/auth"
	"github.com/zulandar/boardsync/internal/broadcast"
	"github.com/zulandar/boardsync/internal/intent"
	"github.com/zulandar/boardsync/internal/reorder"
	"github.com/zulandar/boardsync/internal/sequence"
)

// moveRequest is the move wire shape. For lists the container is boardId;
// for boards it is projectId.
type moveRequest struct {
	SourceListID      uint   `json:"sourceListId"`
	DestinationListID uint   `json:"destinationListId"`
	ItemID            uint   `json:"itemId" binding:"required"`
	ItemTitle         string `json:"itemTitle"`
	ActorName         string `json:"actorName"`
	OldSeqNo          int    `json:"oldSeqNo"`
	NewSeqNo          int    `json:"newSeqNo"`
	BoardID           uint   `json:"boardId"`
	ProjectID         uint   `json:"projectId"`
}

func (m moveRequest) sequenceRequest(kind reorder.Kind) sequence.Request {
	req := sequence.Request{
		ItemID:   m.ItemID,
		OldSeqNo: m.OldSeqNo,
		NewSeqNo: m.NewSeqNo,
	}
	switch kind.Name {
	case reorder.KindList.Name:
		req.SourceContainerID, req.DestinationContainerID = m.BoardID, m.BoardID
	case reorder.KindBoard.Name:
		req.SourceContainerID, req.DestinationContainerID = m.ProjectID, m.ProjectID
	default:
		req.SourceContainerID, req.DestinationContainerID = m.SourceListID, m.DestinationListID
	}
	return req
}

var movedTypes = map[string]string{
	reorder.KindCard.Name:  broadcast.TypeCardMoved,
	reorder.KindList.Name:  broadcast.TypeListMoved,
	reorder.KindBoard.Name: broadcast.TypeBoardMoved,
}

type movedData struct {
	ItemID      uint `json:"itemId"`
	ContainerID uint `json:"containerId"`
	SeqNo       int  `json:"seqNo"`
}

func (s *Server) handleMove(kind reorder.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body moveRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid move request: " + err.Error()})
			return
		}
		res, err := s.exec.Execute(c.Request.Context(), kind, body.sequenceRequest(kind))
		if err != nil {
			fail(c, err)
			return
		}
		if moved, ok := res.Plan.Moved(); ok {
			actor := actorName(c, body.ActorName)
			s.bc.Announce(c.Request.Context(), broadcast.Announcement{
				ProjectID:       res.ProjectID,
				BoardID:         res.BoardID,
				SourceProjectID: res.SourceProjectID,
				SourceBoardID:   res.SourceBoardID,
				Type:            movedTypes[kind.Name],
				Message:         fmt.Sprintf("%s moved %s %s", actor, kind.Name, title(body.ItemTitle, body.ItemID)),
				Actor:           actor,
				Data:            movedData{ItemID: moved.ItemID, ContainerID: moved.ContainerID, SeqNo: moved.SeqNo},
				Origin:          c.GetHeader(intent.HeaderConnectionID),
				ExcludeOrigin:   true,
			})
		}
		c.String(http.StatusOK, "%s moved successfully", kind.Name)
	}
}

// actorName prefers the authenticated display name over the client's claim.
func actorName(c *gin.Context, claimed string) string {
	if id, ok := auth.FromContext(c); ok {
		if id.Name != "" {
			return id.Name
		}
		if claimed == "" {
			return id.UserID
		}
	}
	if claimed == "" {
		return "someone"
	}
	return claimed
}

func title(t string, id uint) string {
	if t == "" {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%q", t)
}
