package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"conference_core/internal/domain"
	"conference_core/internal/repository"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

// RoomRegistry держит таблицу живых комнат. Таблица - единственная
// глобальная структура: всё остальное состояние лежит внутри Room и
// меняется только под его блокировкой.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room

	roomRepo repository.RoomRepository
	log      logger.Logger
}

func NewRoomRegistry(roomRepo repository.RoomRepository, log logger.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[uuid.UUID]*Room),
		roomRepo: roomRepo,
		log:      log,
	}
}

// GetOrCreate возвращает живую комнату, поднимая её из метаданных
// хранилища при первом обращении. Уничтоженная запись заменяется
// свежей: устаревший состав участников не воскрешается.
func (r *RoomRegistry) GetOrCreate(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok && !room.Destroyed() {
		return room, nil
	}

	meta, err := r.roomRepo.GetMeta(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if meta.Status != domain.RoomStatusActive {
		return nil, errors.ErrRoomClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Повторная проверка: комнату могли поднять, пока мы ходили за метаданными
	if room, ok := r.rooms[roomID]; ok && !room.Destroyed() {
		return room, nil
	}
	room = newRoom(meta, r.log)
	r.rooms[roomID] = room
	r.log.Info("Live room created", "room_id", roomID, "capacity", meta.MaxParticipants)
	return room, nil
}

func (r *RoomRegistry) Get(roomID uuid.UUID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

// Evict убирает комнату из таблицы, если там стоит именно эта запись.
func (r *RoomRegistry) Evict(roomID uuid.UUID, room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.rooms[roomID]; ok && current == room {
		delete(r.rooms, roomID)
		r.log.Info("Live room evicted", "room_id", roomID)
	}
}

// Rooms - снимок всех живых комнат.
func (r *RoomRegistry) Rooms() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}
