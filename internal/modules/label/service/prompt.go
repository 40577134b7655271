package service

// LabelInstruction ラベル解読用の固定指示文
const LabelInstruction = `你是一位協助長輩閱讀商品標籤的助理。請仔細閱讀這張商品標籤照片，用繁體中文回答：

1. 產品類型：判斷這是食品、保健食品、化妝品、清潔用品、藥品或其他。
2. 產品名稱：寫出標籤上的產品名稱。
3. 成分說明：逐一列出主要成分，每一項使用「- 成分名稱：功能；可能的風險或注意事項」的格式。
4. 最後一段請以「總結說明：」開頭，用國小學生也聽得懂的簡單句子，寫兩到三句重點提醒，不要使用條列或表格。

如果照片不是商品標籤或看不清楚，請直接說明原因，並仍然提供「總結說明：」段落。`

// DialectInstruction 台語（台羅拼音）翻訳用の指示文
const DialectInstruction = `請把下面這段華語翻譯成自然、口語的台灣台語，並用教育部台灣閩南語羅馬字拼音（台羅）書寫，
讓語音合成系統可以直接朗讀。只輸出翻譯結果，不要加任何說明、引號或原文。

原文：
`
