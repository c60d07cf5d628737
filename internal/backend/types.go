package backend

import (
	"time"

	"github.com/hitoshi/biolog/internal/model"
)

// userDTO は永続化サービスのUsersリソースのワイヤ表現。
// フィールド名は既存バックエンドのスキーマ（小文字連結）に従う。
type userDTO struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"firstname"`
	LastName     string    `json:"lastname"`
	Email        string    `json:"email"`
	Provider     string    `json:"provider"`
	ExternalID   string    `json:"externalid"`
	MotivationID *int64    `json:"motivationid"`
	CreatedDate  time.Time `json:"createddate"`
	UpdatedDate  time.Time `json:"updateddate"`
}

func (d userDTO) toModel() *model.User {
	return &model.User{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		Provider:     d.Provider,
		ExternalID:   d.ExternalID,
		MotivationID: d.MotivationID,
		CreatedAt:    d.CreatedDate,
		UpdatedAt:    d.UpdatedDate,
	}
}

// userWriteDTO はUsersリソースへの書き込みボディ。
// idと日時フィールドはサーバー側で採番されるため含めない。
type userWriteDTO struct {
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	Email        string `json:"email"`
	Provider     string `json:"provider"`
	ExternalID   string `json:"externalid"`
	MotivationID *int64 `json:"motivationid"`
}

// motivationDTO はMotivationsリソースのワイヤ表現。
type motivationDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedDate time.Time `json:"createddate"`
	UpdatedDate time.Time `json:"updateddate"`
}

func (d motivationDTO) toModel() *model.Motivation {
	return &model.Motivation{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    model.MotivationCategory(d.Category),
		CreatedAt:   d.CreatedDate,
		UpdatedAt:   d.UpdatedDate,
	}
}

// motivationWriteDTO はMotivationsリソースへの書き込みボディ。
type motivationWriteDTO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// biohackDTO はBiohacksリソースのワイヤ表現。
// researchStudiesは歴史的経緯によりJSON配列を文字列化したテキストフィールド。
// デコードはmodel.DecodeStudiesに集約されている。
type biohackDTO struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Technique       string    `json:"technique"`
	Category        string    `json:"category"`
	Difficulty      string    `json:"difficulty"`
	TimeRequired    string    `json:"timeRequired"`
	Icon            string    `json:"icon"`
	Color           string    `json:"color"`
	Action          []string  `json:"action"`
	Mechanism       string    `json:"mechanism"`
	Biology         string    `json:"biology"`
	ResearchStudies string    `json:"researchStudies"`
	CreatedDate     time.Time `json:"createddate"`
	UpdatedDate     time.Time `json:"updateddate"`
}

func (d biohackDTO) toModel() *model.Biohack {
	return &model.Biohack{
		ID:              d.ID,
		Title:           d.Title,
		Technique:       d.Technique,
		Category:        model.BiohackCategory(d.Category),
		Difficulty:      model.Difficulty(d.Difficulty),
		TimeRequired:    d.TimeRequired,
		Icon:            d.Icon,
		Color:           d.Color,
		ActionSteps:     d.Action,
		Mechanism:       d.Mechanism,
		Biology:         d.Biology,
		ResearchStudies: model.DecodeStudies(d.ResearchStudies),
		CreatedAt:       d.CreatedDate,
		UpdatedAt:       d.UpdatedDate,
	}
}

// biohackWriteDTO はBiohacksリソースへの書き込みボディ。
type biohackWriteDTO struct {
	Title           string   `json:"title"`
	Technique       string   `json:"technique"`
	Category        string   `json:"category"`
	Difficulty      string   `json:"difficulty"`
	TimeRequired    string   `json:"timeRequired"`
	Icon            string   `json:"icon"`
	Color           string   `json:"color"`
	Action          []string `json:"action"`
	Mechanism       string   `json:"mechanism"`
	Biology         string   `json:"biology"`
	ResearchStudies string   `json:"researchStudies"`
}

func toBiohackWriteDTO(b *model.Biohack) (biohackWriteDTO, error) {
	studies, err := model.EncodeStudies(b.ResearchStudies)
	if err != nil {
		return biohackWriteDTO{}, err
	}
	return biohackWriteDTO{
		Title:           b.Title,
		Technique:       b.Technique,
		Category:        string(b.Category),
		Difficulty:      string(b.Difficulty),
		TimeRequired:    b.TimeRequired,
		Icon:            b.Icon,
		Color:           b.Color,
		Action:          b.ActionSteps,
		Mechanism:       b.Mechanism,
		Biology:         b.Biology,
		ResearchStudies: studies,
	}, nil
}

// journalDTO はJournalsリソースのワイヤ表現。
type journalDTO struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	BiohackID   int64     `json:"biohackId"`
	BiohackName string    `json:"biohackName"`
	DateTime    time.Time `json:"dateTime"`
	Notes       string    `json:"notes"`
	Rating      int       `json:"rating"`
}

func (d journalDTO) toModel() *model.Journal {
	return &model.Journal{
		ID:           d.ID,
		UserID:       d.UserID,
		BiohackID:    d.BiohackID,
		BiohackTitle: d.BiohackName,
		Date:         d.DateTime,
		Notes:        d.Notes,
		Rating:       d.Rating,
		Completed:    true, // このフロー経由で作成されたエントリは常に完了扱い
	}
}

// journalWriteDTO はJournalsリソースへの書き込みボディ。
type journalWriteDTO struct {
	UserID    int64     `json:"userId"`
	BiohackID int64     `json:"biohackId"`
	Notes     string    `json:"notes"`
	Rating    int       `json:"rating"`
	DateTime  time.Time `json:"dateTime"`
}

// linkDTO はMotivationBiohacksリソースのワイヤ表現。
// 2つの外部キー以外のペイロードを持たない。
type linkDTO struct {
	MotivationID int64 `json:"motivationId"`
	BiohackID    int64 `json:"biohackId"`
}

func (d linkDTO) toModel() model.MotivationBiohackLink {
	return model.MotivationBiohackLink{
		MotivationID: d.MotivationID,
		BiohackID:    d.BiohackID,
	}
}
