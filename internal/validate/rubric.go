package validate

// Rubric is the adjudication prompt's fixed rule set (spec.md §4.4
// "MUST be present verbatim; the validator depends on it"). buildPrompt
// embeds it unchanged in every prompt.
const Rubric = `1. Numeric suffix distinctness: members whose only differentiating component is a Roman or Arabic numeral suffix (I/1, II/2, III/3, ...) are distinct places.
2. Cardinal-direction distinctness: members differing only by Norte/Sul/Leste/Oeste are distinct.
3. Geographic-complement distinctness for cities: a city name with an extra geographic complement (e.g., Sao Geraldo vs Sao Geraldo do Baixio) is a different municipality; each registry code is a separate entity.
4. Sector-complement distinctness for neighborhoods: Setor Marista vs Setor Marista Sul are distinct.
5. Spelling-variation equivalence: variants of the same name (accents, casing, internal whitespace) are duplicates.
6. Abbreviation equivalence: Ed. Aurora is equivalent to Edificio Aurora.
7. Prefix-equivalence possibility: Condominio X is equivalent to Residencial X is equivalent to X if context confirms the same place.
8. Missing-vs-present numeral: a bare name vs the same name with a numeral (e.g., Belvedere vs Belvedere 1) is a possible duplicate -- use the full address and context to confirm.`
