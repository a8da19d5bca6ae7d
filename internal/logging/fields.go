package logging

import "log/slog"

// Domain identifiers

func Item(kind string, id uint) slog.Attr {
	return slog.Group("item", slog.String("kind", kind), slog.Uint64("id", uint64(id)))
}

func Container(id uint) slog.Attr {
	return slog.Uint64("container_id", uint64(id))
}

func Project(id uint) slog.Attr {
	return slog.Uint64("project_id", uint64(id))
}

func Board(id uint) slog.Attr {
	return slog.Uint64("board_id", uint64(id))
}

func Conn(id string) slog.Attr {
	return slog.String("connection_id", id)
}

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
