package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
)

const detailPage = `<!DOCTYPE html>
<html>
<body>
	<div class="breadcrumbs">
		<a href="/">Главная</a>
		<a href="/avto">Авто</a>
		<a href="/avto/lada">Лада</a>
	</div>
	<h1>
		Лада Гранта 2019
		<span>Поднять в списке</span>
	</h1>
	<div class="board_item_date"><time>15.03.2026</time></div>
	<div class="board_item_city">Грозный</div>
	<div class="board_item_hits">Просмотры: 128</div>
	<div class="board_item_price"><span>450 000 руб.</span></div>
	<div class="fotorama">
		<img src="/uploads/1.jpg">
		<img src="https://cdn.berkat.ru/2.jpg">
		<img src="/uploads/1.jpg">
	</div>
	<a href="tel:+79991234567">Позвонить</a>
	<div class="board_item_desc">Продаю Ладу Гранту, один хозяин.</div>
	<div class="content_item_props">
		<table>
			<tr><td class="title">Год</td><td class="value">2019</td></tr>
			<tr><td class="title">Пробег</td><td class="value">45000 км</td></tr>
			<tr><td class="title">Пусто</td><td class="value"></td></tr>
		</table>
	</div>
</body>
</html>`

func TestExtractFullPage(t *testing.T) {
	t.Parallel()

	e := New("https://berkat.ru")
	raw, err := e.Extract([]byte(detailPage))
	require.NoError(t, err)

	require.Equal(t, "Лада Гранта 2019", raw.Title)
	require.Equal(t, "Продаю Ладу Гранту, один хозяин.", raw.Description)
	require.Equal(t, "Грозный", raw.City)
	require.Equal(t, "Лада", raw.Category)
	require.Equal(t, "15.03.2026", raw.CreatedAt)
	require.Equal(t, "+79991234567", raw.Phone)
	require.Equal(t, 450000, raw.Price)
	require.True(t, raw.HasPrice)
	require.Equal(t, 128, raw.Views)

	require.Equal(t, []string{
		"https://berkat.ru/uploads/1.jpg",
		"https://cdn.berkat.ru/2.jpg",
	}, raw.Images)

	require.Equal(t, []advert.Property{
		{Name: "Год", Text: "2019"},
		{Name: "Пробег", Text: "45000 км"},
	}, raw.Properties)
}

func TestExtractDescriptionCutAtDelimiter(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="breadcrumbs"><a href="/avto">Авто</a></div>
		<h1>Объявление</h1>
		<div class="board_item_city">Грозный</div>
		<div class="board_item_desc">Основной текст.` + "\t\t\t" + `служебный хвост страницы</div>
	</body></html>`

	e := New("https://berkat.ru")
	raw, err := e.Extract([]byte(html))
	require.NoError(t, err)
	require.Equal(t, "Основной текст.", raw.Description)
}

func TestExtractMissingCity(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="breadcrumbs"><a href="/avto">Авто</a></div>
		<h1>Объявление</h1>
	</body></html>`

	e := New("https://berkat.ru")
	_, err := e.Extract([]byte(html))
	require.ErrorIs(t, err, advert.ErrMissingCity)
}

func TestExtractMissingCategory(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1>Объявление</h1>
		<div class="board_item_city">Грозный</div>
	</body></html>`

	e := New("https://berkat.ru")
	_, err := e.Extract([]byte(html))
	require.ErrorIs(t, err, advert.ErrMissingCategory)
}

func TestExtractOptionalFieldsDefaultToZero(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="breadcrumbs"><a href="/avto">Авто</a></div>
		<h1>Без цены</h1>
		<div class="board_item_city">Урус-Мартан</div>
	</body></html>`

	e := New("https://berkat.ru")
	raw, err := e.Extract([]byte(html))
	require.NoError(t, err)

	require.Equal(t, 0, raw.Price)
	require.False(t, raw.HasPrice)
	require.Equal(t, 0, raw.Views)
	require.Empty(t, raw.Phone)
	require.Empty(t, raw.Images)
	require.Empty(t, raw.Properties)
}

func TestExtractGalleryFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="breadcrumbs"><a href="/avto">Авто</a></div>
		<h1>Фото без фоторамы</h1>
		<div class="board_item_city">Шали</div>
		<div class="board_item_gallery">
			<img src="/uploads/a.png">
		</div>
	</body></html>`

	e := New("https://berkat.ru")
	raw, err := e.Extract([]byte(html))
	require.NoError(t, err)
	require.Equal(t, []string{"https://berkat.ru/uploads/a.png"}, raw.Images)
}
