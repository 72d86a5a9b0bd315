package domain

// ReasonCode explains why a criterion received its status.
type ReasonCode string

const (
	// Choice
	ReasonRecommendedDrug         ReasonCode = "atb_recomendado"
	ReasonDrugNotRecommended      ReasonCode = "atb_nao_recomendado"
	ReasonNotAdministered         ReasonCode = "atb_nao_administrado"
	ReasonDrugNotIdentified       ReasonCode = "atb_nao_identificado"
	ReasonNoProtocolReference     ReasonCode = "atb_sem_referencia_protocolo"
	ReasonProphylaxisNotRequired  ReasonCode = "profilaxia_nao_requerida"
	ReasonProphylaxisNotIndicated ReasonCode = "profilaxia_potencial_sem_indicacao"
	ReasonAdministrationUnknown   ReasonCode = "administracao_desconhecida"

	// Dose
	ReasonDoseCorrect          ReasonCode = "dose_correta"
	ReasonDoseSmallDifference  ReasonCode = "dose_pequena_diferenca"
	ReasonDoseTooLow           ReasonCode = "dose_muito_baixa"
	ReasonDoseTooHigh          ReasonCode = "dose_muito_alta"
	ReasonDoseNotInformed      ReasonCode = "dose_nao_informada"
	ReasonDoseNoReference      ReasonCode = "dose_sem_referencia"
	ReasonDoseNoWeight         ReasonCode = "dose_sem_referencia_peso"
	ReasonDoseUnrecognizedUnit ReasonCode = "dose_unidade_desconhecida"

	// Timing
	ReasonTimingCorrect       ReasonCode = "timing_correto"
	ReasonTimingAfterIncision ReasonCode = "timing_apos_incisao"
	ReasonTimingOutOfWindow   ReasonCode = "timing_fora_janela"
	ReasonTimesNotInformed    ReasonCode = "horarios_nao_informados"
	ReasonTimeUnparseable     ReasonCode = "erro_calculo_horario"

	// Redose
	ReasonRedoseNotApplicable ReasonCode = "repique_nao_aplicavel"
	ReasonRedoseNoTimes       ReasonCode = "repique_horarios_nao_informados"
	ReasonRedoseInInterval    ReasonCode = "repique_no_intervalo"
	ReasonRedoseOutOfInterval ReasonCode = "repique_fora_intervalo"

	// Shared
	ReasonNoProtocolMatch ReasonCode = "sem_match_protocolo"
	ReasonAllConforming   ReasonCode = "todos_criterios_conformes"
	ReasonInsufficient    ReasonCode = "dados_insuficientes"
)

var reasonDescriptions = map[ReasonCode]string{
	ReasonRecommendedDrug:         "Antibiotico recomendado pelo protocolo",
	ReasonDrugNotRecommended:      "Antibiotico nao recomendado pelo protocolo",
	ReasonNotAdministered:         "Antibiotico nao foi administrado",
	ReasonDrugNotIdentified:       "Antibiotico administrado nao identificado",
	ReasonNoProtocolReference:     "Protocolo sem antibiotico de referencia para validar escolha",
	ReasonProphylaxisNotRequired:  "Profilaxia nao requerida para o procedimento",
	ReasonProphylaxisNotIndicated: "Profilaxia potencialmente sem indicacao no protocolo",
	ReasonAdministrationUnknown:   "Administracao de antibiotico nao informada",
	ReasonDoseCorrect:             "Dose dentro da tolerancia",
	ReasonDoseSmallDifference:     "Pequena diferenca de dose detectada (revisar)",
	ReasonDoseTooLow:              "Dose significativamente abaixo da recomendada",
	ReasonDoseTooHigh:             "Dose significativamente acima da recomendada",
	ReasonDoseNotInformed:         "Dose administrada nao informada",
	ReasonDoseNoReference:         "Protocolo sem dose de referencia",
	ReasonDoseNoWeight:            "Nao foi possivel validar dose (falta peso do paciente)",
	ReasonDoseUnrecognizedUnit:    "Unidade de dose nao reconhecida",
	ReasonTimingCorrect:           "Antibiotico administrado dentro da janela",
	ReasonTimingAfterIncision:     "Antibiotico administrado apos a incisao",
	ReasonTimingOutOfWindow:       "Antibiotico administrado fora da janela antes da incisao",
	ReasonTimesNotInformed:        "Horarios nao informados",
	ReasonTimeUnparseable:         "Horario em formato invalido",
	ReasonRedoseNotApplicable:     "Repique nao aplicavel",
	ReasonRedoseNoTimes:           "Horarios de repique nao informados",
	ReasonRedoseInInterval:        "Repique realizado dentro do intervalo recomendado",
	ReasonRedoseOutOfInterval:     "Repique fora do intervalo recomendado",
	ReasonNoProtocolMatch:         "Procedimento nao encontrado no protocolo",
	ReasonAllConforming:           "Todos os criterios conformes",
	ReasonInsufficient:            "Dados insuficientes para avaliar conformidade",
}

// String returns the code itself.
func (r ReasonCode) String() string {
	return string(r)
}

// Description returns readable text for the code, or the code when unknown.
func (r ReasonCode) Description() string {
	if d, ok := reasonDescriptions[r]; ok {
		return d
	}
	return string(r)
}
